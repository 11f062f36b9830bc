package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/academia/apps/api/echo"
)

// token prints a signed API token, e.g. to call the admin hooks from scripts.
func (cli *commandLine) token(uname string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), uname)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetUserClaims(cli.conf, usr))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) sweep() error {
	count, err := cli.sweeper.Sweep(context.Background(), cli.notifSvc.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d notification(s) deleted\n", count)
	return nil
}

// checkOutdated checks a single certificate when userID is set, every certificate of category otherwise.
func (cli *commandLine) checkOutdated(category, userID string) error {
	ctx := context.Background()
	if userID != "" {
		outdated, err := cli.certSvc.CheckOutdated(ctx, userID, category)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "outdated: %t\n", outdated)
		return nil
	}

	count, err := cli.certSvc.CheckOutdatedForCategory(ctx, category)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d certificate(s) became outdated\n", count)
	return nil
}
