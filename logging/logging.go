package logging

import (
	"os"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
)

// Setup installs the nested formatter and the given level on the standard
// logrus logger. Unknown levels fall back to info.
func Setup(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(newFormatter())

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func newFormatter() *nested.Formatter {
	return &nested.Formatter{
		FieldsOrder:     []string{"module", "function"},
		TimestampFormat: time.RFC3339,
		HideKeys:        false,
		NoColors:        os.Getenv("NO_COLOR") != "",
	}
}
