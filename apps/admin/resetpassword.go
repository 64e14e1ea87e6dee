package main

import (
	"context"

	"github.com/trezcool/ritmatiza/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr, uu)
	return err
}
