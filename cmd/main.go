package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"futuresbot/cmd/engine"
	"futuresbot/cmd/keys"
	"futuresbot/cmd/sweep"
)

var Version string

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "futuresbot"
	app.Usage = "Multi-tenant futures trading engine"
	app.Version = Version

	app.Commands = []cli.Command{
		engineCMD,
		sweepCMD,
		encryptKeysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the trading engine",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the trading and monitoring cycles, the maintenance jobs and the HTTP control surface`,
	}
	sweepCMD = cli.Command{
		Name:        "sweep",
		Usage:       "run the retention sweep once",
		Action:      sweepAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Delete trade history and activity logs past their retention`,
	}
	encryptKeysCMD = cli.Command{
		Name:      "encrypt_keys",
		Usage:     "seal a user's exchange api key pair",
		Action:    encryptKeysAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "user", Usage: "user id"},
			cli.StringFlag{Name: "key", Usage: "exchange api key"},
			cli.StringFlag{Name: "secret", Usage: "exchange api secret"},
		},
		Description: `Encrypt an api key/secret pair with EXCHANGE_CREDENTIALS_KEY and store it (KEYS_STORE=false prints it instead)`,
	}
)

func engineAction(_ *cli.Context) error {

	logrus.Info("Starting engine CMD")

	e := &engine.Engine{Log: logrus.WithField("cmd", "engine")}
	err := e.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func sweepAction(_ *cli.Context) error {

	logrus.Info("Starting sweep CMD")

	s := &sweep.Sweep{Log: logrus.WithField("cmd", "sweep")}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Sweep failed")
		return err
	}

	return nil
}

func encryptKeysAction(c *cli.Context) error {
	k := &keys.Keys{Log: logrus.WithField("cmd", "encrypt_keys"), Out: os.Stdout}
	if err := k.Start(c.String("user"), c.String("key"), c.String("secret")); err != nil {
		logrus.WithError(err).Error("Encrypting keys failed")
		return err
	}
	return nil
}
