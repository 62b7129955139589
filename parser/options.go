package parser

type Options struct {
	// Maximum directory depth to analyze for paths.
	MaxDirectoryDepth int
}

func GetDefaultOptions() Options {
	return Options{
		MaxDirectoryDepth: 20,
	}
}
