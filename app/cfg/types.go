package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Cache configuration
	RedisAddr string

	// Application configuration
	SubscriptionsDir  string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Ingestion policy
	FetchDelaySeconds    int
	BacklogStaleDays     int
	BacklogCooldownHours int
	BacklogPageSize      int
	BacklogBatchSize     int

	// Feed composition policy
	RecencyWindowDays int
	TargetFeedSize    int
	NotNowFraction    float64

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
