package main

import (
	"context"
	"fmt"

	"github.com/trezcool/ritmatiza/core/user"
)

// addUser creates an account with any role; the password policy still applies.
func (cli *commandLine) addUser(name, email string, role user.Role, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            role,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("created %s %s (id %d)", usr.Role, usr.Email, usr.ID))
	return nil
}
