package config

// Secret is a string type that redacts itself when printed
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalJSON ensures secrets are redacted when marshaled to JSON
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalYAML ensures secrets are redacted when marshaled to YAML, which is
// what Config.String() and any config dump relies on.
func (s Secret) MarshalYAML() (interface{}, error) {
	return "[REDACTED]", nil
}

// GoString ensures %#v never prints the raw secret in a log line or panic.
func (s Secret) GoString() string {
	return "[REDACTED]"
}
