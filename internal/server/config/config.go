package config

type TLS struct {
	Enable   bool
	CertFile string `validate:"required_if=Enable true"`
	KeyFile  string `validate:"required_if=Enable true"`
}

type Listener struct {
	Address string `validate:"required"`
	Network string `validate:"oneof=tcp tcp4 tcp6 unix"`
	TLS     TLS
}

type Logging struct {
	NoTime bool
	Level  string `validate:"oneof=trace debug info warning warn error fatal panic"`
}

type Share struct {
	Name string `validate:"required,excludesall=/\\"`
	Path string `validate:"required"`
	// Quota is a humanized byte count ("10 GB"); empty means unlimited.
	Quota string
}

type User struct {
	Name string `validate:"required"`
	// Secret is either a bcrypt digest (Bcrypt true) or a plaintext
	// password (Bcrypt false).
	Secret string `validate:"required"`
	Bcrypt bool
	Admin  bool
}

type Rule struct {
	Who     string   `validate:"required"`
	Allow   []string `validate:"required,min=1,dive,oneof=R W D"`
	Roots   []string `validate:"required,min=1"`
	Paths   []string
	IpAllow []string
	IpDeny  []string
}

type RateLimit struct {
	Rps           int `validate:"min=0"`
	Burst         int `validate:"min=0"`
	MaxConcurrent int `validate:"min=0"`
}

type IPFilter struct {
	Allow []string
	Deny  []string
}

type UI struct {
	Brand         string
	Title         string
	TextShareDir  string
	MaxUploadSize int64 `validate:"min=0"`
}

type Dav struct {
	Enable    bool
	MountPath string `validate:"required_if=Enable true,omitempty,startswith=/"`
}

type HotReload struct {
	Enable     bool
	DebounceMs int `validate:"min=0"`
}

type Server struct {
	filePath string // path this config was decoded from

	Listener  Listener
	Logging   Logging
	Shares    []Share `validate:"dive"`
	Users     []User  `validate:"dive"`
	Rules     []Rule  `validate:"dive"`
	RateLimit RateLimit
	IPFilter  IPFilter
	UI        UI
	Dav       Dav
	HotReload HotReload
}

// FilePath reports where the config was decoded from; empty for the
// built-in default config.
func (s *Server) FilePath() string { return s.filePath }
