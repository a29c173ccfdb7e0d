package config

var Default = Server{
	filePath: "",
	Listener: Listener{
		Address: ":8080",
		Network: "tcp",
		TLS: TLS{
			Enable: false,
		},
	},
	Logging: Logging{
		NoTime: false,
		Level:  "info",
	},
	RateLimit: RateLimit{
		Rps:           50,
		Burst:         100,
		MaxConcurrent: 32,
	},
	IPFilter: IPFilter{
		Allow: []string{},
		Deny:  []string{},
	},
	UI: UI{
		Brand:         "cuthttp",
		Title:         "cuthttp File Server",
		MaxUploadSize: 100 << 20,
	},
	Dav: Dav{
		Enable:    true,
		MountPath: "/webdav",
	},
	HotReload: HotReload{
		Enable:     true,
		DebounceMs: 1000,
	},
	Shares: []Share{},
	Users:  []User{},
	Rules:  []Rule{},
}
