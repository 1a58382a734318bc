// Command eventhubdemo wires a Hub with the sample echo extension, config
// loaded from an optional YAML file, and zap-backed logging, then
// dispatches a handful of events so the wiring can be observed end to end.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/sdkcore/eventhub"
	"github.com/sdkcore/eventhub/config"
	"github.com/sdkcore/eventhub/extensions/echo"
	"github.com/sdkcore/eventhub/logging"
	"github.com/sdkcore/eventhub/value"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML hub config file (optional)")
	flag.Parse()

	cfg := config.DefaultHubConfig()
	if *configPath != "" {
		if err := config.Load(config.NewYAMLFeeder(*configPath), &cfg); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	zapLogger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zapLogger.Sync()

	opts := []eventhub.HubOption{eventhub.WithLogger(zapLogger)}
	if cfg.HistoryCapacity > 0 {
		opts = append(opts, eventhub.WithHistorySink(cfg.HistoryCapacity))
	}
	hub := eventhub.NewHub(opts...)
	defer hub.Shutdown()

	done := make(chan eventhub.RegistrationError, 1)
	hub.RegisterExtension(echo.NewFactory("*"), func(err eventhub.RegistrationError) {
		done <- err
	})
	if err := <-done; err != eventhub.RegistrationErrorNone {
		log.Fatalf("register echo extension: %s", err)
	}

	hub.Start()

	for i := 0; i < 3; i++ {
		hub.Dispatch(eventhub.NewEvent("com.example.demo", "com.example.source", map[string]value.Value{
			"sequence": value.Int64(int64(i)),
		}))
	}

	time.Sleep(100 * time.Millisecond)

	data, ok := hub.GetSharedState(eventhub.StateTypeStandard, echo.Name, nil, nil)
	if ok {
		zapLogger.Info("final echo state", "data", data)
	}
}
