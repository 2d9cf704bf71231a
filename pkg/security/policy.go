// Package security checks structurally valid automation graphs against a safety policy.
package security

// Policy configures the scanner. Zero-valued thresholds fall back to the defaults.
type Policy struct {
	// DeniedNodeTypes are node kinds that grant shell, code or filesystem access.
	DeniedNodeTypes []string `yaml:"denied_node_types"`
	// DeniedHosts are hostnames that parameters may not target. Subdomains match too.
	DeniedHosts []string `yaml:"denied_hosts"`
	// DenyPrivateNetworks rejects loopback, link-local and private IP literals in URLs.
	DenyPrivateNetworks bool `yaml:"deny_private_networks"`
	// SecretPatterns are regular expressions matching well-known credential formats.
	SecretPatterns []string `yaml:"secret_patterns"`
	// SecretKeyNames are normalized parameter key suffixes whose literal values are treated as secrets.
	SecretKeyNames []string `yaml:"secret_key_names"`
	// EntropyThreshold is the Shannon entropy, in bits per character, above which a long token is a secret.
	EntropyThreshold float64 `yaml:"entropy_threshold"`
	// EntropyMinLength is the shortest value considered by the entropy check.
	EntropyMinLength int `yaml:"entropy_min_length"`
}

const (
	defaultEntropyThreshold = 4.0
	defaultEntropyMinLength = 32
)

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		DeniedNodeTypes: []string{
			"n8n-nodes-base.executeCommand",
			"n8n-nodes-base.code",
			"n8n-nodes-base.function",
			"n8n-nodes-base.functionItem",
			"n8n-nodes-base.ssh",
			"n8n-nodes-base.readWriteFile",
			"n8n-nodes-base.readBinaryFile",
			"n8n-nodes-base.readBinaryFiles",
			"n8n-nodes-base.writeBinaryFile",
			"n8n-nodes-base.localFileTrigger",
			"@n8n/n8n-nodes-langchain.code",
		},
		DeniedHosts: []string{
			"169.254.169.254",
			"metadata.google.internal",
			"localhost",
			"127.0.0.1",
			"0.0.0.0",
			"::1",
		},
		DenyPrivateNetworks: true,
		SecretPatterns: []string{
			`sk-[A-Za-z0-9_-]{16,}`,
			`AKIA[0-9A-Z]{16}`,
			`gh[pousr]_[A-Za-z0-9]{20,}`,
			`xox[abprs]-[A-Za-z0-9-]{10,}`,
			`-----BEGIN [A-Z ]*PRIVATE KEY-----`,
			`AIza[0-9A-Za-z_-]{35}`,
			`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`,
		},
		SecretKeyNames: []string{
			"apikey",
			"accesskey",
			"secretkey",
			"privatekey",
			"token",
			"secret",
			"password",
			"passwd",
		},
		EntropyThreshold: defaultEntropyThreshold,
		EntropyMinLength: defaultEntropyMinLength,
	}
}
