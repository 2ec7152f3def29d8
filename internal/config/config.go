package config

import "github.com/spf13/viper"

// Config holds the runtime configuration of the tracking engine
type Config struct {
	Port          string  `mapstructure:"PORT"`
	DBPath        string  `mapstructure:"DB_PATH"`
	RemoteBaseURL string  `mapstructure:"REMOTE_BASE_URL"`
	DeviceID      string  `mapstructure:"DEVICE_ID"`
	JWTSecret     string  `mapstructure:"JWT_SECRET"`
	SyncRPS       float64 `mapstructure:"SYNC_UPLOADS_PER_SECOND"`

	// Trip detection thresholds
	MinSpeedMPS          float64 `mapstructure:"MIN_SPEED_MPS"`
	MinTripDurationS     int64   `mapstructure:"MIN_TRIP_DURATION_S"`
	MinTripDistanceM     float64 `mapstructure:"MIN_TRIP_DISTANCE_M"`
	MaxSampleAccuracyM   float64 `mapstructure:"MAX_SAMPLE_ACCURACY_M"`
	DriftRadiusM         float64 `mapstructure:"DRIFT_RADIUS_M"`
	CandidateWindowS     int64   `mapstructure:"CANDIDATE_WINDOW_S"`
	SimplifyToleranceDeg float64 `mapstructure:"SIMPLIFY_TOLERANCE_DEG"`

	// Local retention of raw samples after confirmed sync, in days
	SampleRetentionDays int `mapstructure:"SAMPLE_RETENTION_DAYS"`
}

// Load reads configuration from the environment with sensible defaults
func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("DB_PATH", "./data/tracking.db")
	viper.SetDefault("REMOTE_BASE_URL", "http://localhost:9090")
	viper.SetDefault("DEVICE_ID", "dev-device")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("SYNC_UPLOADS_PER_SECOND", 5.0)

	viper.SetDefault("MIN_SPEED_MPS", 0.8)
	viper.SetDefault("MIN_TRIP_DURATION_S", 60)
	viper.SetDefault("MIN_TRIP_DISTANCE_M", 50.0)
	viper.SetDefault("MAX_SAMPLE_ACCURACY_M", 50.0)
	viper.SetDefault("DRIFT_RADIUS_M", 25.0)
	viper.SetDefault("CANDIDATE_WINDOW_S", 0)
	viper.SetDefault("SIMPLIFY_TOLERANCE_DEG", 0.0001)
	viper.SetDefault("SAMPLE_RETENTION_DAYS", 30)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
