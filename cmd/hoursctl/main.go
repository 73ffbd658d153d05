package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"club-hours/config"
	"club-hours/internal/dto"
	"club-hours/internal/openinghours"
	"club-hours/internal/service"
	"club-hours/pkg/database"
	"club-hours/pkg/jwt"
	applogger "club-hours/pkg/logger"
)

var Version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "hoursctl"
	app.Usage = "offline tooling for club opening hours"
	app.Version = Version
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Commands = append(
		app.Commands,
		&checkCommand,
		&validateCommand,
		&tokenCommand,
		&importCommand,
		&migrateCommand,
	)
	return app
}

var checkCommand = cli.Command{
	Name:   "check",
	Usage:  "Check that a set of windows has no overlaps and no invalid entries",
	Flags:  []cli.Flag{windowsFileFlag},
	Action: checkAction,
}

var validateCommand = cli.Command{
	Name:   "validate",
	Usage:  "Check whether a candidate window can join an existing set",
	Flags:  []cli.Flag{windowsFileFlag, candidateFlag},
	Action: validateAction,
}

var tokenCommand = cli.Command{
	Name:   "token",
	Usage:  "Mint a development access token signed with the configured secret",
	Flags:  []cli.Flag{configFlag, userIDFlag, roleFlag, municipalityIDFlag, clubIDFlag},
	Action: tokenAction,
}

var importCommand = cli.Command{
	Name:   "import",
	Usage:  "Convert weekly recurring events of an .ics file into a window array",
	Flags:  []cli.Flag{icsFileFlag, timezoneFlag, clubNameFlag},
	Action: importAction,
}

var migrateCommand = cli.Command{
	Name:  "migrate",
	Usage: "Apply or roll back the embedded database migrations",
	Flags: []cli.Flag{configFlag},
	Subcommands: []*cli.Command{
		{
			Name:   "up",
			Usage:  "Apply all pending migrations",
			Action: migrateUpAction,
		},
		{
			Name:   "down",
			Usage:  "Roll back every migration (drops all opening-hours tables)",
			Flags:  []cli.Flag{confirmFlag},
			Action: migrateDownAction,
		},
	},
}

func checkAction(ctx *cli.Context) error {
	set, err := readWindows(ctx.String(fileFlagName))
	if err != nil {
		return err
	}

	if err := openinghours.ValidateSet(set); err != nil {
		return printResult(ctx.App.Writer, dto.ValidationResultFromError(err))
	}

	fmt.Fprintf(ctx.App.Writer, "ok: %d windows, no conflicts\n", len(set))
	return nil
}

func validateAction(ctx *cli.Context) error {
	existing, err := readWindows(ctx.String(fileFlagName))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(ctx.String(candidateFlagName))
	if err != nil {
		return fmt.Errorf("read candidate: %w", err)
	}
	var candidate openinghours.Window
	if err := json.Unmarshal(data, &candidate); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	return printResult(ctx.App.Writer, dto.ValidationResultFromError(openinghours.Validate(candidate.WithDefaults(), existing)))
}

func tokenAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFlagName))
	if err != nil {
		return err
	}

	id := jwt.Identity{
		UserID:         ctx.String(userIDFlagName),
		Role:           ctx.String(roleFlagName),
		MunicipalityID: ctx.String(municipalityIDFlagName),
		ClubID:         ctx.String(clubIDFlagName),
	}
	switch id.Role {
	case jwt.RoleSuperAdmin:
	case jwt.RoleMunicipalityAdmin:
		if id.MunicipalityID == "" {
			return fmt.Errorf("--%s is required for %s", municipalityIDFlagName, id.Role)
		}
	case jwt.RoleClubAdmin:
		if id.MunicipalityID == "" || id.ClubID == "" {
			return fmt.Errorf("--%s and --%s are required for %s", municipalityIDFlagName, clubIDFlagName, id.Role)
		}
	default:
		return fmt.Errorf("unknown role %q", id.Role)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(id)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(ctx.App.Writer, token)
	return nil
}

func importAction(ctx *cli.Context) error {
	loc, err := time.LoadLocation(ctx.String(timezoneFlagName))
	if err != nil {
		return fmt.Errorf("invalid time zone: %w", err)
	}

	f, err := os.Open(ctx.String(fileFlagName))
	if err != nil {
		return fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	set, skipped, err := service.ParseICSWindows(f, loc, ctx.String(clubNameFlagName))
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(ctx.App.ErrWriter, "skipped %q: %s\n", s.Summary, s.Reason)
	}

	if err := openinghours.ValidateSet(set); err != nil {
		return printResult(ctx.App.Writer, dto.ValidationResultFromError(err))
	}

	if set == nil {
		set = openinghours.Set{}
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

func migrateUpAction(ctx *cli.Context) error {
	sqlDB, logger, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	defer logger.Sync()

	return database.RunMigrations(sqlDB, logger)
}

func migrateDownAction(ctx *cli.Context) error {
	if !ctx.Bool(confirmFlagName) {
		return fmt.Errorf("refusing to drop tables without --%s", confirmFlagName)
	}

	sqlDB, logger, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	defer logger.Sync()

	if err := database.RollbackMigrations(sqlDB); err != nil {
		return err
	}
	logger.Info("数据库迁移已全部回滚")
	return nil
}

// openDatabase 按服务端配置连接数据库
func openDatabase(ctx *cli.Context) (*sql.DB, *zap.Logger, error) {
	cfg, err := config.Load(ctx.String(configFlagName))
	if err != nil {
		return nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log, "hoursctl")
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, logger, nil
}

// readWindows 读取 JSON 数组并补齐缺省标记
func readWindows(path string) (openinghours.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read windows: %w", err)
	}
	var set openinghours.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode windows: %w", err)
	}
	for i := range set {
		set[i] = set[i].WithDefaults()
	}
	return set, nil
}

// printResult 输出校验结果；未通过时以退出码 2 结束
func printResult(w io.Writer, res *dto.ValidationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.OK {
		return cli.Exit(fmt.Sprintf("%s: %s", res.Kind, res.Message), 2)
	}
	return nil
}
