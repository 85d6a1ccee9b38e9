package usercfg

// DefaultAPIURL matches the web app's fallback when no base URL is configured.
const DefaultAPIURL = "http://localhost:8787"

const DefaultWebURL = "http://localhost:5173"

func getDefaults() Config {
	f := false
	return Config{
		SchemaVersion:     CurrentSchemaVersion,
		APIURL:            DefaultAPIURL,
		WebURL:            DefaultWebURL,
		DefaultColumn:     "todo",
		RollbackOnFailure: &f,
		AnchorRows:        3,
	}
}
