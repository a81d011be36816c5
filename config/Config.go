package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type EncoderDecoderType string

const JSON_ENCODER_DECODER EncoderDecoderType = "JSON"

type Config struct {
	RedisConfig                 RedisStorageConfig
	HttpPort                    int
	StorageType                 StorageType
	EncoderDecoderType          EncoderDecoderType
	WorkerCount                 int
	ExecutorCapacity            int
	PollIntervalSeconds         int
	SchedulePollIntervalSeconds int
	DedupRetentionMinutes       int
	ActionTimeoutSeconds        int
	RetryCount                  int
	RetryAfterSeconds           int
	ExclusiveQueueDepth         int
	RunHistoryLimit             int
	AuditConfig                 AuditConfig
	LogLevel                    string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type AuditConfig struct {
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}
