package console_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/fleetdeck/pkg/configs/console"
	"github.com/opst/fleetdeck/pkg/utils/try"
)

func TestLoad(t *testing.T) {
	t.Run("it can be created from a config file", func(t *testing.T) {
		result := try.To(console.Load("./testdata/config.yaml")).OrFatal(t)

		expected := &console.Config{
			Backend: console.BackendConfig{
				ApiRoot: "https://backend.example.com:8282",
				Token:   "session-token",
			},
			Server: console.ServerConfig{Port: "18080", LogLevel: "debug"},
			List: console.ListConfig{
				Viewport: &console.Viewport{Width: 1000, Height: 750},
			},
			Requests: console.RequestsConfig{PollInterval: 5 * time.Second},
			Templates: console.TemplatesConfig{
				RecommendedImages: []console.RecommendedImage{
					{Name: "library/nginx", Description: "web server"},
					{Name: "library/redis"},
				},
			},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("config (-want +got):\n%s", diff)
		}
		if result.Port() != "18080" {
			t.Errorf("port: %s", result.Port())
		}
		if result.PollInterval() != 5*time.Second {
			t.Errorf("poll interval: %s", result.PollInterval())
		}
	})

	t.Run("when the file does not exist, it fails", func(t *testing.T) {
		if _, err := console.Load("./testdata/no-such-file.yaml"); err == nil {
			t.Error("no error")
		}
	})
}

func TestUnmarshal(t *testing.T) {
	t.Run("defaults are used for omitted values", func(t *testing.T) {
		conf := try.To(console.Unmarshal([]byte(`
backend:
  apiRoot: http://localhost:8282
`))).OrFatal(t)
		if conf.Port() != console.DefaultPort {
			t.Errorf("port: %s", conf.Port())
		}
		if conf.PollInterval() != console.DefaultPollInterval {
			t.Errorf("poll interval: %s", conf.PollInterval())
		}
	})

	for name, content := range map[string]string{
		"when apiRoot is not absolute URL": `
backend:
  apiRoot: /backend
`,
		"when CA is not PEM": `
backend:
  apiRoot: http://localhost:8282
  cert:
    ca: bm90IGEgcGVt
`,
		"when page size is negative": `
backend:
  apiRoot: http://localhost:8282
list:
  pageSize: -1
`,
		"when viewport is empty": `
backend:
  apiRoot: http://localhost:8282
list:
  viewport:
    width: 0
    height: 100
`,
		"when a recommended image has no name": `
backend:
  apiRoot: http://localhost:8282
templates:
  recommendedImages:
    - description: nameless
`,
	} {
		t.Run(name+", it fails with ErrConfigInvalid", func(t *testing.T) {
			_, err := console.Unmarshal([]byte(content))
			if !errors.Is(err, console.ErrConfigInvalid) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
