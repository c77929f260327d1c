package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/config"
	"github.com/apogeecmb/smartSprinkler/internal/services/aggregator"
	"github.com/apogeecmb/smartSprinkler/internal/services/notify"
	"github.com/apogeecmb/smartSprinkler/internal/services/persistence"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

func TestBuildDefaultsToDryRun(t *testing.T) {
	cfg, err := loader(t, "disabled", true)()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(context.Background(), cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.Device.(dryRunController); !ok {
		t.Fatalf("device = %T", b.Device)
	}
	if b.Rainfall != nil || b.History != nil || b.Forecast != nil || b.Notifier != nil || b.Store != nil {
		t.Fatalf("unexpected collaborators: %+v", b.Collaborators)
	}
}

func TestBuildFileStoreAndWebhook(t *testing.T) {
	dir := t.TempDir()
	yaml := fmt.Sprintf(baseYAML, "errors_only", true) + fmt.Sprintf(`
status_store: {type: file, file: {dir: %q}}
notifier: {type: webhook, webhook: {url: "http://127.0.0.1:1/{event}"}}
forecast: {type: openweather}
`, dir)
	cfg, err := config.Parse("test.yaml", []byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(context.Background(), cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.Store.(*persistence.FileStore); !ok {
		t.Fatalf("store = %T", b.Store)
	}
	if b.Notifier == nil || b.Forecast == nil {
		t.Fatal("notifier or forecast not built")
	}
}

type recordingCloser struct{ closed int }

func (c *recordingCloser) Close() error {
	c.closed++
	return nil
}

type staticRain struct{}

func (staticRain) Rainfall(context.Context, time.Time, time.Time, float64) (float64, time.Time, error) {
	return 0, time.Time{}, nil
}

// withFactories swaps registry entries for the duration of a test.
func withFactories(t *testing.T, rain rainfallFactory, note notifierFactory, store storeFactory) {
	t.Helper()
	oldRain, oldNote, oldStore := rainfallFactories[config.RainfallWeeWX], notifierFactories[config.NotifierWebhook], storeFactories[config.StoreFile]
	if rain != nil {
		rainfallFactories[config.RainfallWeeWX] = rain
	}
	if note != nil {
		notifierFactories[config.NotifierWebhook] = note
	}
	if store != nil {
		storeFactories[config.StoreFile] = store
	}
	t.Cleanup(func() {
		rainfallFactories[config.RainfallWeeWX] = oldRain
		notifierFactories[config.NotifierWebhook] = oldNote
		storeFactories[config.StoreFile] = oldStore
	})
}

func TestBuildClosesWhatItOpenedOnError(t *testing.T) {
	boom := errors.New("boom")
	okRain := func(c *recordingCloser) rainfallFactory {
		return func(context.Context, *config.Config, logx.Logger) (aggregator.RainfallSource, io.Closer, error) {
			return staticRain{}, c, nil
		}
	}
	failRain := func(context.Context, *config.Config, logx.Logger) (aggregator.RainfallSource, io.Closer, error) {
		return nil, nil, boom
	}
	failNote := func(context.Context, *config.Config, logx.Logger) (notify.Sink, io.Closer, error) {
		return nil, nil, boom
	}
	failStore := func(context.Context, *config.Config, logx.Logger) (StatusStore, io.Closer, error) {
		return nil, nil, boom
	}

	cases := []struct {
		name       string
		extra      string
		rain       func(*recordingCloser) rainfallFactory
		note       notifierFactory
		store      storeFactory
		wantClosed int
	}{
		{
			name:  "rainfall fails after the controller is dialed",
			extra: `controller: {type: grpc, address: "127.0.0.1:1"}`,
			rain:  func(*recordingCloser) rainfallFactory { return failRain },
		},
		{
			name:       "notifier fails after rainfall opened",
			extra:      `notifier: {type: webhook, webhook: {url: "http://127.0.0.1:1/x"}}`,
			rain:       okRain,
			note:       failNote,
			wantClosed: 1,
		},
		{
			name:       "store fails last",
			extra:      "controller: {type: grpc, address: \"127.0.0.1:1\"}\nstatus_store: {type: file}",
			rain:       okRain,
			store:      failStore,
			wantClosed: 1,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rc := &recordingCloser{}
			withFactories(t, c.rain(rc), c.note, c.store)

			yaml := fmt.Sprintf(baseYAML, "errors_only", true) +
				"rainfall: {type: weewx, weewx: {path: /nonexistent/weewx.sdb}}\n" + c.extra + "\n"
			cfg, err := config.Parse("test.yaml", []byte(yaml))
			if err != nil {
				t.Fatal(err)
			}

			var (
				b    *Built
				berr error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("Build panicked: %v", r)
					}
				}()
				b, berr = Build(context.Background(), cfg, logx.Nop())
			}()
			if !errors.Is(berr, boom) {
				t.Fatalf("err = %v, want boom", berr)
			}
			if b != nil {
				t.Fatalf("Build returned %+v on error", b)
			}
			if rc.closed != c.wantClosed {
				t.Fatalf("closed %d times, want %d", rc.closed, c.wantClosed)
			}
		})
	}
}
