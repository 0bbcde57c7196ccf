package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/extrato-dev/extrato/client"
	"github.com/extrato-dev/extrato/client/caju"
	"github.com/extrato-dev/extrato/client/flash"
	"github.com/extrato-dev/extrato/client/model"
	"github.com/extrato-dev/extrato/consts"
	"github.com/extrato-dev/extrato/ofx"
	"github.com/extrato-dev/extrato/prompter"
	"github.com/extrato-dev/extrato/redactor"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// brt matches the providers' statement timezone
var brt = time.FixedZone("BRT", -3*60*60)

func main() {
	usageErr, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if usageErr {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage(flagSet *flag.FlagSet) string {
	oldOutput := flagSet.Output()
	buf := bytes.NewBuffer(nil)
	flagSet.SetOutput(buf)
	flagSet.Usage()
	flagSet.SetOutput(oldOutput)
	return buf.String()
}

// envDefault returns the environment variable's value, or fallback when unset
func envDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func run(args []string) (usageErr bool, err error) {
	// credentials usually live in a .env next to the binary
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return false, errors.Wrap(err, "Error loading .env file")
	}

	flagSet := flag.NewFlagSet("extrato", flag.ContinueOnError)
	providerName := flagSet.String("provider", envDefault("PROVIDER", "flash"), "Benefit card provider to export from: 'flash' or 'caju'")
	outputPath := flagSet.String("output", "", "File to write OFX to. Defaults to stdout")
	flagSet.StringVar(outputPath, "o", "", "Shorthand for -output")
	tokenCachePath := flagSet.String("token-cache", envDefault("TOKEN_CACHE_FILE", ""), "File to cache API tokens in, so repeat runs skip the SMS challenge")
	requestVersion := flagSet.Bool("version", false, "Print the version and exit")

	cajuBaseURL := flagSet.String("base-url", envDefault("BASE_URL", caju.DefaultBaseURL), "Base URL of the Caju API")
	bearerToken := flagSet.String("bearer-token", envDefault("BEARER_TOKEN", ""), "Bearer token for the Caju API. Can be captured with a MITM proxy while opening the Caju mobile app")
	refreshToken := flagSet.String("refresh-token", envDefault("REFRESH_TOKEN", ""), "Refresh token for the Caju API. Captured the same way as -bearer-token")
	userID := flagSet.String("user-id", envDefault("USER_ID", ""), "User ID of your Caju user")
	employeeID := flagSet.String("employee-id", envDefault("EMPLOYEE_ID", ""), "Employee ID of your benefit card account")

	flashUsername := flagSet.String("flash-username", envDefault("FLASH_USERNAME", ""), "Username for the Flash web app")
	flashPassword := flagSet.String("flash-password", envDefault("FLASH_PASSWORD", ""), "Password for the Flash web app")
	flashOverrideToken := flagSet.String("flash-override-token", envDefault("FLASH_AUTH_OVERRIDE_TOKEN", ""), "Existing Flash API token, skips the SMS login flow")
	flashCompanyID := flagSet.String("flash-company", envDefault("FLASH_COMPANY_ID", ""), "Company ID of your Flash employer")
	flashBaseURL := flagSet.String("flash-base-url", envDefault("FLASH_BASE_URL", ""), "Base URL overriding every Flash API endpoint, e.g. a demo server")

	flagSet.Usage = func() {
		fmt.Fprintf(flagSet.Output(), "Usage: extrato [flags] [month] [year]\n\nExports one month of benefit card transactions as OFX.\nMonth accepts English month names or numbers, defaulting to the current month and year.\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return true, err
	}
	if *requestVersion {
		fmt.Println(consts.Version)
		return false, nil
	}

	month, year, err := parseMonthYear(flagSet.Args(), time.Now().In(brt))
	if err != nil {
		return true, errors.Errorf("%s\n%s", err.Error(), usage(flagSet))
	}
	start, end := monthRange(year, month)

	logger, err := newLogger()
	if err != nil {
		return false, err
	}
	defer logger.Sync() // nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		logger.Info("Interrupted, canceling requests")
		cancel()
	}()

	tokens, err := client.NewTokenCache(*tokenCachePath)
	if err != nil {
		return false, err
	}
	httpClient := client.New(logger)

	var provider model.Provider
	switch *providerName {
	case "flash":
		config := flash.Config{
			Username:      *flashUsername,
			Password:      redactor.String(*flashPassword),
			OverrideToken: redactor.String(*flashOverrideToken),
			CompanyID:     *flashCompanyID,
			EmployeeID:    *employeeID,
		}
		if *flashBaseURL != "" {
			config.URLs = flash.URLsAtBase(*flashBaseURL)
		}
		if config.OverrideToken == "" {
			if token, ok := tokens.Token("flash"); ok {
				logger.Info("Using cached Flash token")
				config.OverrideToken = token
			}
		}
		if err := config.Validate(); err != nil {
			return true, errors.Errorf("%s\n%s", err.Error(), usage(flagSet))
		}
		flashClient := flash.New(config, httpClient, logger)
		if !flashClient.Authenticated() {
			if err := flashClient.Login(ctx, prompter.New(os.Stdin, os.Stderr)); err != nil {
				return false, err
			}
			token, ttl := flashClient.Token()
			if ttl <= 0 {
				ttl = time.Hour
			}
			tokens.SetToken("flash", token, ttl)
			if err := tokens.Save(); err != nil {
				logger.Warn("Failed to save token cache", zap.Error(err))
			}
		}
		provider = flashClient
	case "caju":
		config := caju.Config{
			BaseURL:      *cajuBaseURL,
			UserID:       *userID,
			EmployeeID:   *employeeID,
			BearerToken:  redactor.String(*bearerToken),
			RefreshToken: redactor.String(*refreshToken),
		}
		if err := config.Validate(); err != nil {
			return true, errors.Errorf("%s\n%s", err.Error(), usage(flagSet))
		}
		cajuClient := caju.New(config, httpClient)
		if err := cajuClient.Login(ctx); err != nil {
			return false, err
		}
		provider = cajuClient
	default:
		return true, errors.Errorf("Unknown provider: %q\n%s", *providerName, usage(flagSet))
	}

	logger.Info("Fetching statement",
		zap.String("provider", provider.Description()),
		zap.String("month", month.String()),
		zap.Int("year", year))
	statement, err := provider.Statement(ctx, start, end)
	if err != nil {
		return false, err
	}

	var out io.Writer = os.Stdout
	if *outputPath != "" {
		file, err := os.OpenFile(*outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return false, errors.Wrapf(err, "Error opening '%s'", *outputPath)
		}
		defer file.Close()
		out = file
	}
	if err := ofx.Write(out, statement); err != nil {
		return false, err
	}
	if *outputPath != "" {
		logger.Info("Wrote OFX statement",
			zap.String("month", month.String()),
			zap.Int("year", year),
			zap.String("path", *outputPath),
			zap.Int("transactions", len(statement.Transactions)))
	}
	return false, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEVELOPMENT") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// parseMonthYear reads the optional month and year arguments, defaulting to now
func parseMonthYear(args []string, now time.Time) (time.Month, int, error) {
	month := now.Month()
	year := now.Year()
	if len(args) > 2 {
		return 0, 0, errors.Errorf("Too many arguments: %s", args)
	}
	if len(args) >= 1 {
		var err error
		month, err = parseMonth(args[0])
		if err != nil {
			return 0, 0, err
		}
	}
	if len(args) == 2 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, errors.Errorf("Invalid year: %q", args[1])
		}
		year = parsed
	}
	return month, year, nil
}

// parseMonth accepts English month names in any case, or numbers 1 through 12
func parseMonth(input string) (time.Month, error) {
	if number, err := strconv.Atoi(input); err == nil {
		if number < 1 || number > 12 {
			return 0, errors.Errorf("Month number out of range: %d", number)
		}
		return time.Month(number), nil
	}
	for month := time.January; month <= time.December; month++ {
		if strings.EqualFold(month.String(), input) {
			return month, nil
		}
	}
	return 0, errors.Errorf("Invalid month: %q", input)
}

// monthRange returns the first and last instant of the month in statement time
func monthRange(year int, month time.Month) (start, end time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, brt)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}
