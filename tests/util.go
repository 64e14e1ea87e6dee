package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/ritmatiza/core/user"
)

// Password satisfies the password policy for any name and email used in tests.
const Password = "Xq7#pLm9$wZ"

// CreateUser stores a user straight through repo, bypassing validation. points are credited after creation.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	role user.Role,
	points int,
	teacherID *int,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		TeacherID: teacherID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	ctx := context.Background()
	usr, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if points != 0 {
		if usr, err = repo.AddPoints(ctx, usr.ID, points); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	return usr
}
