package main

import "github.com/urfave/cli/v2"

const (
	configFlagName         = "config"
	fileFlagName           = "file"
	candidateFlagName      = "candidate"
	userIDFlagName         = "user-id"
	roleFlagName           = "role"
	municipalityIDFlagName = "municipality-id"
	clubIDFlagName         = "club-id"
	timezoneFlagName       = "timezone"
	clubNameFlagName       = "club-name"
	confirmFlagName        = "yes"
)

var (
	configFlag = &cli.StringFlag{
		Name:    configFlagName,
		Usage:   "path to the server config file (defaults to ./config/config.yaml)",
		EnvVars: []string{"HOURS_CONFIG"},
	}
	windowsFileFlag = &cli.StringFlag{
		Name:     fileFlagName,
		Aliases:  []string{"f"},
		Usage:    "JSON file holding an array of opening-hour windows",
		Required: true,
	}
	candidateFlag = &cli.StringFlag{
		Name:     candidateFlagName,
		Aliases:  []string{"c"},
		Usage:    "JSON file holding the candidate window",
		Required: true,
	}
	userIDFlag = &cli.StringFlag{
		Name:     userIDFlagName,
		Usage:    "subject of the token",
		Required: true,
	}
	roleFlag = &cli.StringFlag{
		Name:     roleFlagName,
		Usage:    "super_admin | municipality_admin | club_admin",
		Required: true,
	}
	municipalityIDFlag = &cli.StringFlag{
		Name:  municipalityIDFlagName,
		Usage: "municipality the admin belongs to (required unless super_admin)",
	}
	clubIDFlag = &cli.StringFlag{
		Name:  clubIDFlagName,
		Usage: "club managed by a club_admin",
	}
	icsFileFlag = &cli.StringFlag{
		Name:     fileFlagName,
		Aliases:  []string{"f"},
		Usage:    "iCalendar (.ics) file to convert",
		Required: true,
	}
	timezoneFlag = &cli.StringFlag{
		Name:  timezoneFlagName,
		Usage: "time zone the opening hours are expressed in",
		Value: "Europe/Oslo",
	}
	confirmFlag = &cli.BoolFlag{
		Name:  confirmFlagName,
		Usage: "confirm the destructive operation",
	}
	clubNameFlag = &cli.StringFlag{
		Name:  clubNameFlagName,
		Usage: "club name prefix to strip from event summaries",
	}
)
