package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimServer holds all configuration for the creature simulation server.
type SimServer struct {
	LogLevel string `yaml:"log_level"`

	// Tick interval in milliseconds
	TickIntervalMs int `yaml:"tick_interval_ms"`

	World    World          `yaml:"world"`
	LOD      LOD            `yaml:"lod"`
	Spawn    Spawn          `yaml:"spawn"`
	Flock    Flock          `yaml:"flock"`
	Pack     Pack           `yaml:"pack"`
	Feed     Feed           `yaml:"feed"`
	Database DatabaseConfig `yaml:"database"`
}

// World holds spatial grid parameters.
type World struct {
	// CellSize is the edge length of one spatial hash cell, in world units.
	// Tuned so a typical query radius spans a handful of cells.
	CellSize float64 `yaml:"cell_size"`
}

// LOD holds sleep/wake thresholds for the level-of-detail lifecycle.
// WakeDistance must be strictly below SleepDistance: the gap is the
// hysteresis band that keeps agents from flapping between states.
type LOD struct {
	SleepDistance float64 `yaml:"sleep_distance"`
	WakeDistance  float64 `yaml:"wake_distance"`
}

// Spawn holds population and respawn parameters.
type Spawn struct {
	TargetPopulation int     `yaml:"target_population"`
	MaxPopulation    int     `yaml:"max_population"`
	RespawnEverySec  int     `yaml:"respawn_every_sec"`
	MinObserverDist  float64 `yaml:"min_observer_dist"`
	MaxObserverDist  float64 `yaml:"max_observer_dist"`
}

// Flock holds steering weights for swarm species.
type Flock struct {
	NeighborRadius   float64 `yaml:"neighbor_radius"`
	MinSpacing       float64 `yaml:"min_spacing"`
	SeparationWeight float64 `yaml:"separation_weight"`
	AlignmentWeight  float64 `yaml:"alignment_weight"`
	CohesionWeight   float64 `yaml:"cohesion_weight"`
	WanderWeight     float64 `yaml:"wander_weight"`
	HomeWeight       float64 `yaml:"home_weight"`
	HomeRadius       float64 `yaml:"home_radius"`
	ScatterRadius    float64 `yaml:"scatter_radius"`
	ScatterSec       int     `yaml:"scatter_sec"`
}

// Pack holds group coordination parameters.
type Pack struct {
	MinViableSize   int     `yaml:"min_viable_size"`
	CallRadius      float64 `yaml:"call_radius"`
	CallCooldownSec int     `yaml:"call_cooldown_sec"`
	EngageRange     float64 `yaml:"engage_range"`
	FormationRadius float64 `yaml:"formation_radius"`
	FlankRadius     float64 `yaml:"flank_radius"`
	ScanRadius      float64 `yaml:"scan_radius"`
	HomeRadius      float64 `yaml:"home_radius"`
	PatrolChance    float64 `yaml:"patrol_chance"`
}

// Feed holds the websocket event feed listener settings.
type Feed struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the
// sleeping-snapshot store. Disabled by default; the simulation is
// fully functional in memory.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultSimServer returns SimServer config with sensible defaults.
func DefaultSimServer() SimServer {
	return SimServer{
		LogLevel:       "info",
		TickIntervalMs: 500,
		World: World{
			CellSize: 32,
		},
		LOD: LOD{
			SleepDistance: 400,
			WakeDistance:  300,
		},
		Spawn: Spawn{
			TargetPopulation: 40,
			MaxPopulation:    60,
			RespawnEverySec:  30,
			MinObserverDist:  80,
			MaxObserverDist:  250,
		},
		Flock: Flock{
			NeighborRadius:   24,
			MinSpacing:       4,
			SeparationWeight: 1.5,
			AlignmentWeight:  1.0,
			CohesionWeight:   1.0,
			WanderWeight:     0.3,
			HomeWeight:       0.6,
			HomeRadius:       60,
			ScatterRadius:    20,
			ScatterSec:       6,
		},
		Pack: Pack{
			MinViableSize:   2,
			CallRadius:      80,
			CallCooldownSec: 15,
			EngageRange:     25,
			FormationRadius: 12,
			FlankRadius:     10,
			ScanRadius:      90,
			HomeRadius:      15,
			PatrolChance:    0.05,
		},
		Feed: Feed{
			Enabled:     true,
			BindAddress: "0.0.0.0",
			Port:        8777,
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "dinogo",
			Password: "dinogo",
			DBName:   "dinogo",
			SSLMode:  "disable",
		},
	}
}

// LoadSimServer loads config from a YAML file, overlaying it on defaults.
func LoadSimServer(path string) (SimServer, error) {
	cfg := DefaultSimServer()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that would break the simulation.
func (c SimServer) Validate() error {
	if c.World.CellSize <= 0 {
		return fmt.Errorf("world.cell_size must be positive, got %v", c.World.CellSize)
	}
	if c.LOD.WakeDistance >= c.LOD.SleepDistance {
		return fmt.Errorf("lod.wake_distance (%v) must be below lod.sleep_distance (%v)",
			c.LOD.WakeDistance, c.LOD.SleepDistance)
	}
	if c.Spawn.MaxPopulation < c.Spawn.TargetPopulation {
		return fmt.Errorf("spawn.max_population (%d) must be at least target_population (%d)",
			c.Spawn.MaxPopulation, c.Spawn.TargetPopulation)
	}
	if c.Pack.MinViableSize < 1 {
		return fmt.Errorf("pack.min_viable_size must be at least 1, got %d", c.Pack.MinViableSize)
	}
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", c.TickIntervalMs)
	}
	return nil
}
