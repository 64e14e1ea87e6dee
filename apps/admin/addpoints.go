package main

import (
	"context"
	"fmt"
)

// addPoints adjusts a balance by hand. A debit larger than the balance fails and changes nothing.
func (cli *commandLine) addPoints(email string, delta int) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr, err = cli.usrSvc.AddPoints(ctx, usr.ID, delta); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("%s now has %d points", usr.Email, usr.Points))
	return nil
}
