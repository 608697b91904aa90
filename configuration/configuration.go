package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Dir               string `usage:"data directory, defaults to the user config dir"`
	Database          string `usage:"database name"`
	Password          string `usage:"encrypt the database with a key derived from this password"`
	Salt              string `usage:"salt for the password, defaults to the database name"`
	ApiKey            string `usage:"require this X-Api-Key header when not empty"`
	ApiSecret         string `usage:"require this X-Api-Secret header"`
	EnableCompression bool   `usage:"gzip responses"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:   "127.0.0.1:8080",
		Database:   "Public",
		ShowBanner: true,
	}
}
