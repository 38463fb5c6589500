// Separate package is workaround to import cycles.
package tele_config

type Config struct { //nolint:maligned
	Enabled           bool   `yaml:"enabled"`
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Client            string `yaml:"client"`
	Topic             string `yaml:"topic"`
	Qos               int    `yaml:"qos"`
	Retain            bool   `yaml:"retain"`
	Authentication    bool   `yaml:"authentication"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"` // secret
	TlsEnabled        bool   `yaml:"tls_enabled"`
	TlsCaCert         string `yaml:"tls_ca_cert"`
	TlsCert           string `yaml:"tls_cert"`
	TlsKey            string `yaml:"tls_key"`
	TlsInsecure       bool   `yaml:"tls_insecure"`
	KeepaliveSec      int    `yaml:"keepalive_sec"`
	NetworkTimeoutSec int    `yaml:"network_timeout_sec"`
	LogDebug          bool   `yaml:"log_debug"`

	PersistPath string `yaml:"-"`
}
