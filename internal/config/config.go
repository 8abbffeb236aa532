package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/klokku/venuebook/pkg/booking"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "VENUEBOOK_"

type Application struct {
	Host     string   `koanf:"host"`
	Addr     string   `koanf:"addr"`
	Calendar Calendar `koanf:"calendar"`
	Database Database `koanf:"db"`
	Metrics  Metrics  `koanf:"metrics"`
}

// Calendar holds the interaction engine settings for one venue.
type Calendar struct {
	SlotDurationMinutes       int      `koanf:"slotdurationminutes"`
	WorkDayStart              string   `koanf:"workdaystart"`
	WorkDayEnd                string   `koanf:"workdayend"`
	MinBookingDurationMinutes int      `koanf:"minbookingdurationminutes"`
	MaxHistorySize            int      `koanf:"maxhistorysize"`
	NonOccupyingStatuses      []string `koanf:"nonoccupyingstatuses"`
	PersistTimeoutSeconds     int      `koanf:"persisttimeoutseconds"`
	// PreloadDays is how many days, starting today, are loaded into the board on startup.
	PreloadDays int `koanf:"preloaddays"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	Name     string `koanf:"name"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"maxconns"`
}

type Metrics struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Addr: ":8181",
		Calendar: Calendar{
			SlotDurationMinutes:       30,
			WorkDayStart:              "06:00",
			WorkDayEnd:                "23:00",
			MinBookingDurationMinutes: 30,
			MaxHistorySize:            50,
			NonOccupyingStatuses:      []string{"cancelled"},
			PersistTimeoutSeconds:     10,
			PreloadDays:               7,
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "venuebook",
			Pass:     "",
			Name:     "venuebook",
			Schema:   "venuebook",
			MaxConns: 10,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			if k == "calendar.nonoccupyingstatuses" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if err := app.Calendar.Validate(); err != nil {
		return Application{}, fmt.Errorf("invalid calendar config: %w", err)
	}

	return app, nil
}

// Validate checks the numeric settings and that the work day parses into a grid.
func (c Calendar) Validate() error {
	if c.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slotdurationminutes must be positive")
	}
	if c.MinBookingDurationMinutes <= 0 {
		return fmt.Errorf("minbookingdurationminutes must be positive")
	}
	if c.MaxHistorySize <= 0 {
		return fmt.Errorf("maxhistorysize must be positive")
	}
	if c.PersistTimeoutSeconds <= 0 {
		return fmt.Errorf("persisttimeoutseconds must be positive")
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	return nil
}

// Grid parses the slot settings into a booking.Grid.
func (c Calendar) Grid() (booking.Grid, error) {
	start, err := booking.ParseWallClock(c.WorkDayStart)
	if err != nil {
		return booking.Grid{}, fmt.Errorf("workdaystart: %w", err)
	}
	end, err := booking.ParseWallClock(c.WorkDayEnd)
	if err != nil {
		return booking.Grid{}, fmt.Errorf("workdayend: %w", err)
	}
	grid := booking.Grid{
		SlotDurationMinutes:       c.SlotDurationMinutes,
		WorkDayStart:              start,
		WorkDayEnd:                end,
		MinBookingDurationMinutes: c.MinBookingDurationMinutes,
	}
	if err := grid.Validate(); err != nil {
		return booking.Grid{}, err
	}
	return grid, nil
}

// Statuses returns the configured non-occupying statuses.
func (c Calendar) Statuses() []booking.Status {
	statuses := make([]booking.Status, 0, len(c.NonOccupyingStatuses))
	for _, s := range c.NonOccupyingStatuses {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, booking.Status(s))
		}
	}
	return statuses
}
