package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docflow/agent"
	"docflow/config"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "docflow", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage")
	cmd.Flags().Int("worker-count", 4, "number of run execution workers")
	cmd.Flags().Int("executor-capacity", 100, "task capacity of each worker")
	cmd.Flags().Int("poll-interval", 1, "delay queue poll interval in seconds")
	cmd.Flags().Int("schedule-poll-interval", 30, "scheduler wake interval in seconds")
	cmd.Flags().Int("dedup-retention", 60, "event dedup retention in minutes")
	cmd.Flags().Int("action-timeout", 60, "per action timeout in seconds")
	cmd.Flags().Int("retry-count", 3, "default action attempts before a run fails")
	cmd.Flags().Int("retry-after", 5, "base retry delay in seconds")
	cmd.Flags().Int("exclusive-queue-depth", 16, "queued runs kept per exclusive workflow")
	cmd.Flags().Int("run-history-limit", 100, "archived runs kept per workflow")
	cmd.Flags().String("audit-file", "docflow-audit.log", "audit trail file, empty disables the trail")
	cmd.Flags().Int("audit-max-size", 100, "audit file size in MB before rotation")
	cmd.Flags().Int("audit-max-backups", 5, "rotated audit files kept")
	cmd.Flags().Int("audit-max-age", 30, "days a rotated audit file is kept")
	cmd.Flags().String("log-level", "info", "log level")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.EncoderDecoderType = config.JSON_ENCODER_DECODER
	c.cfg.WorkerCount = viper.GetInt("worker-count")
	c.cfg.ExecutorCapacity = viper.GetInt("executor-capacity")
	c.cfg.PollIntervalSeconds = viper.GetInt("poll-interval")
	c.cfg.SchedulePollIntervalSeconds = viper.GetInt("schedule-poll-interval")
	c.cfg.DedupRetentionMinutes = viper.GetInt("dedup-retention")
	c.cfg.ActionTimeoutSeconds = viper.GetInt("action-timeout")
	c.cfg.RetryCount = viper.GetInt("retry-count")
	c.cfg.RetryAfterSeconds = viper.GetInt("retry-after")
	c.cfg.ExclusiveQueueDepth = viper.GetInt("exclusive-queue-depth")
	c.cfg.RunHistoryLimit = viper.GetInt("run-history-limit")
	c.cfg.AuditConfig.FileName = viper.GetString("audit-file")
	c.cfg.AuditConfig.MaxSizeMB = viper.GetInt("audit-max-size")
	c.cfg.AuditConfig.MaxBackups = viper.GetInt("audit-max-backups")
	c.cfg.AuditConfig.MaxAgeDays = viper.GetInt("audit-max-age")
	c.cfg.LogLevel = viper.GetString("log-level")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "docflow",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
