package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	out      io.Writer
	validate *validator.Validate
	usrSvc   *user.Service
	certSvc  *certificate.Service
	notifSvc *notification.Service
	sweeper  *notification.Sweeper
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-to VERSION, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-admin] - create a user")
	fmt.Fprintln(cli.out, "  token -username USERNAME|EMAIL - print an API token for the user")
	fmt.Fprintln(cli.out, "  sweep - delete the notifications whose grace period is over")
	fmt.Fprintln(cli.out, "  checkoutdated -category CATEGORY [-user ID] - flag certificates missing courses of the category")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenUname := tokenCmd.String("username", "", "The user's username or email.")

	checkOutdatedCmd := flag.NewFlagSet("checkoutdated", flag.ExitOnError)
	checkOutdatedCategory := checkOutdatedCmd.String("category", "", "The category a course was added to.")
	checkOutdatedUser := checkOutdatedCmd.String("user", "", "Only check this user's certificate.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, *addUserAdmin)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUname)
	case "sweep":
		return cli.sweep()
	case "checkoutdated":
		if err := checkOutdatedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *checkOutdatedCategory == "" {
			checkOutdatedCmd.Usage()
			return errHelp
		}
		return cli.checkOutdated(*checkOutdatedCategory, *checkOutdatedUser)
	default:
		cli.printUsage()
		return errHelp
	}
}
