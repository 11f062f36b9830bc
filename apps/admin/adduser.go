package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/user"
)

// addUser creates an active user.User; admins get the admin role, everyone else the student one.
func (cli *commandLine) addUser(name, uname, email string, isAdmin bool) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Roles:    user.StudentRoles,
	}
	if isAdmin {
		nu.Roles = []string{user.RoleAdmin}
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s created: %s\n", usr.Username, usr.ID)
	return nil
}
