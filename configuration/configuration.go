package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	HttpsEnabled      bool   `usage:"serve HTTPS"`
	HttpsSelfsigned   bool   `usage:"use a self signed certificate for HTTPS"`
	EnableCompression bool   `usage:"gzip responses when the client accepts it"`
	ApiKey            string `usage:"API key, empty disables authentication"`
	ApiSecret         string `usage:"API secret"`
	Dir               string `usage:"data directory, empty keeps everything in memory"`
	Codec             string `usage:"journal codec [json|msgpack]"`
	SyncWrites        bool   `usage:"fsync the journal after every append"`
	LogLevel          string `usage:"log level [debug|info|warn|error]"`
	LogFormat         string `usage:"log format [json|console]"`
	MaxHookPasses     int    `usage:"maximum hook passes per commit"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		HttpsEnabled:      false,
		HttpsSelfsigned:   false,
		EnableCompression: true,
		Dir:               "data",
		Codec:             "json",
		SyncWrites:        false,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxHookPasses:     100,
		ShowBanner:        true,
	}
}
