package config

// SecretStringValue must be exported - used in tests.
const SecretStringValue = "<secret>"

// SecretString holds credentials, it is masked whenever configuration is
// printed or logged.
type SecretString string

// Value returns actual secret.
func (s SecretString) Value() string {
	return string(s)
}

// String implements fmt.Stringer so %v and zap.Stringer never leak the value.
func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

// MarshalJSON marshals SecretString to JSON making sure that actual value is not visible.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte("\"" + SecretStringValue + "\""), nil
}

// MarshalYAML marshals SecretString to YAML making sure that actual value is not visible.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}
