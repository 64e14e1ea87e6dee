package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrSvc   *user.Service
	validate *validator.Validate
	logger   core.Logger
}

func newCommandLine(db *sql.DB, usrSvc *user.Service, logger core.Logger) *commandLine {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return &commandLine{db: db, usrSvc: usrSvc, validate: validate, logger: logger}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...]                   - run a database migration command (up, down, status, ...)")
	fmt.Println("  adduser -email EMAIL -name NAME [-role ROLE] - create a user; the password will be prompted")
	fmt.Println("  resetpassword -email EMAIL                  - reset a user's password")
	fmt.Println("  addpoints -email EMAIL -points N            - credit (or debit, when negative) a user's balance")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", string(user.RoleAdmin), "STUDENT, TEACHER or ADMIN.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	addPointsCmd := flag.NewFlagSet("addpoints", flag.ContinueOnError)
	addPointsEmail := addPointsCmd.String("email", "", "The user's email.")
	addPointsDelta := addPointsCmd.Int("points", 0, "Points to add; negative values debit.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Println("Usage: migrate up|up-by-one|up-to VERSION|down|down-to VERSION|redo|reset|status|version|fix|create NAME [sql|go]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, user.Role(strings.ToUpper(*addUserRole)), pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "addpoints":
		if err := addPointsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addPointsEmail == "" || *addPointsDelta == 0 {
			addPointsCmd.Usage()
			return errHelp
		}
		return cli.addPoints(*addPointsEmail, *addPointsDelta)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
