package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kingrea/campus-news/internal/config"
	"github.com/kingrea/campus-news/internal/logbook"
	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/state"
	"github.com/kingrea/campus-news/internal/tracker"
)

// session bundles everything a command needs to talk to the API.
type session struct {
	config  *config.Config
	logbook *logbook.Logbook
	tracker *tracker.Tracker
}

func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func loadConfig() (*config.Config, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}
	if err := config.InitFeedDir(dir); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", config.FeedDir, err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		if err := cfg.SetAPIBaseURL(apiURL); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	store, err := state.NewFileStore(cfg.StateDir())
	if err != nil {
		return nil, err
	}
	// The client id is stamped on every request, so it is read before the
	// tracker loads the record itself. A record moved aside as corrupt is
	// replaced by a fresh one; any other failure leaves the file alone.
	rec, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, state.ErrCorrupt):
		lb.Warn("load client id: %v", err)
		rec = state.NewRecord()
	default:
		lb.Warn("load client id: %v", err)
		rec = state.Record{}
	}
	clientID := rec.ClientID
	if clientID != "" {
		if err := store.Save(rec); err != nil {
			lb.Warn("persist client id: %v", err)
		}
	}
	client := news.NewClient(cfg.APIBaseURL(),
		news.WithTimeout(cfg.APITimeout()),
		news.WithClientID(clientID),
		news.WithLogger(lb),
	)
	lb.Info("session opened · api %s", client.BaseURL())
	return &session{
		config:  cfg,
		logbook: lb,
		tracker: tracker.New(client, store, tracker.WithLogger(lb)),
	}, nil
}
