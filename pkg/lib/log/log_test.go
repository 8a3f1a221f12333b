package log_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/slok/mobydemux/pkg/lib/log"
)

func TestNewLogrus(t *testing.T) {
	tests := map[string]struct {
		level    logrus.Level
		log      func(l log.Logger)
		expLines []string
		expEmpty bool
	}{
		"Values should be added to the log lines.": {
			level: logrus.InfoLevel,
			log: func(l log.Logger) {
				l.WithValues(log.Kv{"session-id": "01ABC"}).Infof("session %s", "started")
			},
			expLines: []string{`msg="session started"`, "session-id=01ABC"},
		},

		"Levels under the logrus level should be discarded.": {
			level: logrus.InfoLevel,
			log: func(l log.Logger) {
				l.Debugf("hidden")
			},
			expEmpty: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			l := logrus.New()
			l.SetOutput(&out)
			l.SetLevel(test.level)
			l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

			test.log(log.NewLogrus(l))

			if test.expEmpty {
				assert.Empty(t, out.String())
				return
			}
			for _, exp := range test.expLines {
				assert.Contains(t, out.String(), exp)
			}
		})
	}
}

func TestNewLogrusNil(t *testing.T) {
	assert.Equal(t, log.Noop, log.NewLogrus(nil))
}
