package main

import (
	"context"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"skusync/pkg/catalog/config"
	"skusync/pkg/catalog/feed"
	"skusync/pkg/catalog/pipeline"
	"skusync/pkg/catalog/search"
	"skusync/pkg/catalog/store"
)

const (
	ConfigDefault = "config/config.yaml"
	ConfigUsage   = "path to the YAML configuration file"
	FeedUsage     = "override the feed file path from the config"
)

var (
	configFlag string
	feedFlag   string
	// BuildTime will be populated by the linker to tell builds apart after they were shipped
	BuildTime string
)

func init() {
	flag.StringVar(&configFlag, "config", ConfigDefault, ConfigUsage)
	flag.StringVar(&feedFlag, "feed", "", FeedUsage)
}

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	if err := godotenv.Load(); err != nil {
		log.Debugln("No .env file found, reading the environment directly")
	}

	log.WithFields(
		log.Fields{
			"Image Built on": BuildTime,
			"Started at":     time.Now().UTC(),
		},
	).Println("Application Started")

	cfg, err := config.New(configFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(feedFlag) > 0 {
		cfg.SetFeedPath(feedFlag)
	}

	mux := new(sync.Mutex)
	errs := pipeline.NewPE(mux)

	dsn, err := cfg.GetPostgres()
	errs.Log(err, "Load Postgres Config")

	st, err := store.Open(dsn)
	errs.Log(err, "Connect to Postgres")
	defer st.Close()

	esURL, esUser, esPassword, index, err := cfg.GetElastic()
	errs.Log(err, "Load Elasticsearch Config")

	es, err := search.New(esURL, esUser, esPassword, index)
	errs.Log(err, "Connect to Elasticsearch")

	feedPath, err := cfg.GetFeed()
	errs.Log(err, "Locate Feed File")

	cats, err := feed.LoadHierarchyFile(feedPath)
	errs.Log(err, "Build Category Hierarchy")
	log.WithField("Categories", cats.Len()).Infoln("Category hierarchy resolved")

	f, err := os.Open(feedPath)
	errs.Log(err, "Open Feed File")
	defer f.Close()

	dec := feed.NewDecoder(f, cats)
	stats, err := pipeline.New(st, es).Run(context.Background(), dec)
	if err != nil {
		// log.Fatalf exits without running the deferred closes
		f.Close()
		st.Close()
		log.Fatalf("%v", err)
	}

	if dec.Skipped() > 0 {
		log.WithField("Skipped", dec.Skipped()).Warnln("Some offers could not be decoded")
	}

	log.WithFields(
		log.Fields{
			"Records":              stats.Records,
			"Max Memory Allocated": errs.GetMaxMemory(),
		},
	).Infoln("Finished without errors")
}
