package commands

import (
	"time"

	"github.com/pepuns/pepuns-api/pkg/apiserver"
	"github.com/pepuns/pepuns-api/pkg/backend"
	"github.com/pepuns/pepuns-api/pkg/chain"
	"github.com/pepuns/pepuns-api/pkg/db"
	"github.com/pepuns/pepuns-api/pkg/notify"
	"github.com/pepuns/pepuns-api/pkg/version"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

type apiServerCommand struct{}

func (s *apiServerCommand) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalContext()

	log := logrus.WithField("command", "api-server")

	log.Infof("version: %v", version.Get())

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	chainCfg, err := chain.NewConfig(
		c.String("chain-rpc-url"),
		c.Int64("chain-id"),
		c.String("treasury-address"),
		c.String("payment-mode"),
		c.String("token-address"),
		c.Int("token-decimals"),
		c.String("registration-fee"),
		time.Duration(c.Int64("rpc-timeout"))*time.Second,
		c.Uint("receipt-attempts"),
	)
	if err != nil {
		return err
	}

	client, err := chain.Dial(ctx, chainCfg)
	if err != nil {
		return err
	}
	verifier := chain.NewVerifier(client, chainCfg)

	notifier := notify.NewNoop()
	if c.String("telegram-bot-token") != "" && c.String("telegram-chat-id") != "" {
		notifier = notify.NewTelegram(c.String("telegram-bot-token"), c.String("telegram-chat-id"), 10*time.Second)
	} else {
		log.Info("telegram credentials not set, registration notifications are disabled")
	}

	back, err := backend.NewBackend(database, verifier, notifier, backend.Config{
		MinNameLength:      c.Int("min-name-length"),
		RegistrationPeriod: time.Duration(c.Int64("registration-period")) * time.Second,
		PendingTTL:         time.Duration(c.Int64("pending-ttl")) * time.Second,
		SweepInterval:      time.Duration(c.Int64("sweep-interval")) * time.Second,
		NotifyTimeout:      30 * time.Second,
	})
	if err != nil {
		return err
	}

	apiServer := apiserver.NewAPIServer(ctx, log, c.Int("port"), c.String("admin-token-hash"))

	if err := apiServer.Start(back); err != nil {
		return err
	}

	return nil
}

func serverCommand() *cli.Command {
	cmd := apiServerCommand{}

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port for the HTTP Server Port",
			EnvVars: []string{"PEPUNS_PORT", "PORT"},
			Value:   3000,
		},
		&cli.StringFlag{
			Name:    "sql-dialect",
			Usage:   "The type of sql to use, sqlite or mysql",
			EnvVars: []string{"PEPUNS_SQL_DIALECT", "SQL_DIALECT"},
			Value:   "sqlite",
		},
		&cli.StringFlag{
			Name:    "sql-dsn",
			Usage:   "The DSN to use to connect to",
			EnvVars: []string{"PEPUNS_SQL_DSN", "SQL_DSN"},
			Value:   "file:pepuns.sqlite?_pragma=foreign_keys(1)",
		},
		&cli.StringFlag{
			Name:    "chain-rpc-url",
			Usage:   "JSON-RPC endpoint of the chain node",
			EnvVars: []string{"PEPUNS_CHAIN_RPC_URL", "CHAIN_RPC_URL"},
			Value:   "https://rpc-pepu-v2-mainnet-0.t.conduit.xyz",
		},
		&cli.Int64Flag{
			Name:    "chain-id",
			Usage:   "Chain ID payments are expected on",
			EnvVars: []string{"PEPUNS_CHAIN_ID", "CHAIN_ID"},
			Value:   97741,
		},
		&cli.StringFlag{
			Name:    "treasury-address",
			Usage:   "Wallet that must receive registration payments",
			EnvVars: []string{"PEPUNS_TREASURY_ADDRESS", "TREASURY_ADDRESS"},
			Value:   "0x3af0382fF31F4C5965a48E5B42092Be03C8e6e9B",
		},
		&cli.StringFlag{
			Name:    "payment-mode",
			Usage:   "Payment asset: native or token",
			EnvVars: []string{"PEPUNS_PAYMENT_MODE", "PAYMENT_MODE"},
			Value:   "token",
		},
		&cli.StringFlag{
			Name:    "token-address",
			Usage:   "ERC-20 contract address for token payments",
			EnvVars: []string{"PEPUNS_TOKEN_ADDRESS", "TOKEN_ADDRESS"},
			Value:   "0xC565AE272c15D1aCaFc25C3A92a56D33Fa280f01",
		},
		&cli.IntFlag{
			Name:    "token-decimals",
			Usage:   "Decimals of the payment token",
			EnvVars: []string{"PEPUNS_TOKEN_DECIMALS", "TOKEN_DECIMALS"},
			Value:   6,
		},
		&cli.StringFlag{
			Name:    "registration-fee",
			Usage:   "Registration fee in whole units of the payment asset",
			EnvVars: []string{"PEPUNS_REGISTRATION_FEE", "REGISTRATION_FEE"},
			Value:   "10",
		},
		&cli.Int64Flag{
			Name:    "registration-period",
			Usage:   "Registration period in seconds",
			EnvVars: []string{"PEPUNS_REGISTRATION_PERIOD", "REGISTRATION_PERIOD"},
			Value:   31536000,
		},
		&cli.Int64Flag{
			Name:    "pending-ttl",
			Usage:   "Max seconds a pending reservation holds a name",
			EnvVars: []string{"PEPUNS_PENDING_TTL", "PENDING_TTL"},
			Value:   900,
		},
		&cli.Int64Flag{
			Name:    "sweep-interval",
			Usage:   "Seconds between sweeps of expired pending reservations",
			EnvVars: []string{"PEPUNS_SWEEP_INTERVAL", "SWEEP_INTERVAL"},
			Value:   300,
		},
		&cli.Int64Flag{
			Name:    "rpc-timeout",
			Usage:   "Per-call timeout in seconds for chain RPC requests",
			EnvVars: []string{"PEPUNS_RPC_TIMEOUT", "RPC_TIMEOUT"},
			Value:   5,
		},
		&cli.UintFlag{
			Name:    "receipt-attempts",
			Usage:   "Max attempts when polling for a transaction receipt",
			EnvVars: []string{"PEPUNS_RECEIPT_ATTEMPTS", "RECEIPT_ATTEMPTS"},
			Value:   12,
		},
		&cli.IntFlag{
			Name:    "min-name-length",
			Usage:   "Minimum label length, 0 disables the check",
			EnvVars: []string{"PEPUNS_MIN_NAME_LENGTH", "MIN_NAME_LENGTH"},
			Value:   3,
		},
		&cli.StringFlag{
			Name:    "telegram-bot-token",
			Usage:   "Telegram bot token for registration notifications",
			EnvVars: []string{"PEPUNS_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "telegram-chat-id",
			Usage:   "Telegram chat to notify",
			EnvVars: []string{"PEPUNS_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
		},
		&cli.StringFlag{
			Name:    "admin-token-hash",
			Usage:   "bcrypt hash of the admin bearer token; empty disables admin routes",
			EnvVars: []string{"PEPUNS_ADMIN_TOKEN_HASH", "ADMIN_TOKEN_HASH"},
		},
	}

	return &cli.Command{
		Name:   "api-server",
		Usage:  "pepuns api server",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
