package user

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotATeacher        = errors.New("the selected user is not a teacher")
	ErrNotAStudent        = errors.New("only students can be assigned to a teacher")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND on the non-empty QueryFilter fields, ordered by id.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// AddPoints adds delta (possibly negative) to the balance atomically.
		// The balance never goes below zero: a debit larger than the balance fails
		// with a *core.InsufficientPointsError and changes nothing.
		AddPoints(ctx context.Context, id int, delta int) (User, error)
		SetSpotifyCredentials(ctx context.Context, id int, creds SpotifyCredentials) error
		ClearSpotifyCredentials(ctx context.Context, id int) error
	}

	Service struct {
		repo Repository
		now  core.Clock
	}
)

func NewService(repo Repository, now ...core.Clock) *Service {
	clock := core.SystemClock
	if len(now) > 0 && now[0] != nil {
		clock = now[0]
	}
	return &Service{repo: repo, now: clock}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a student account with an empty balance.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	nu.TeacherID = nil
	return svc.Create(ctx, nu)
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	if nu.TeacherID != nil {
		if err := svc.checkTeacher(ctx, *nu.TeacherID); err != nil {
			return User{}, err
		}
	}
	now := svc.now()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		TeacherID: nu.TeacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate returns the User matching email and pwd.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, pkgerrors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

// QueryVisible lists the users an actor may see: admins see everybody, teachers their students.
func (svc *Service) QueryVisible(ctx context.Context, actor User) ([]User, error) {
	if actor.IsAdmin() {
		return svc.repo.QueryUsers(ctx, QueryFilter{})
	}
	if err := Require(actor, CapGradeSubmissions); err != nil {
		return nil, err
	}
	return svc.repo.QueryUsers(ctx, QueryFilter{Role: RoleStudent, TeacherID: &actor.ID})
}

func (svc *Service) ListTeachers(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx, QueryFilter{Role: RoleTeacher})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.UpdatedAt = svc.now()
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// AssignTeacher sets the supervising teacher of a student.
// Teachers may only assign students to themselves.
func (svc *Service) AssignTeacher(ctx context.Context, actor User, studentID, teacherID int) (User, error) {
	if err := Require(actor, CapGradeSubmissions); err != nil {
		return User{}, err
	}
	if !actor.IsAdmin() && teacherID != actor.ID {
		return User{}, core.NewPermissionError(string(CapManageUsers))
	}
	student, err := svc.repo.GetUserByID(ctx, studentID)
	if err != nil {
		return User{}, err
	}
	if !student.IsStudent() {
		return User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "id", Error: ErrNotAStudent.Error()})
	}
	if err = svc.checkTeacher(ctx, teacherID); err != nil {
		return User{}, err
	}
	student.TeacherID = &teacherID
	student.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, student)
}

// Teacher returns the supervising teacher of usr.
func (svc *Service) Teacher(ctx context.Context, usr User) (User, error) {
	if usr.TeacherID == nil {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUserByID(ctx, *usr.TeacherID)
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID int) error {
	teacher, err := svc.repo.GetUserByID(ctx, teacherID)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(ErrNotATeacher, core.FieldError{Field: "teacher_id", Error: ErrNotATeacher.Error()})
		}
		return pkgerrors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() {
		return core.NewValidationError(ErrNotATeacher, core.FieldError{Field: "teacher_id", Error: ErrNotATeacher.Error()})
	}
	return nil
}

func (svc *Service) AddPoints(ctx context.Context, id, delta int) (User, error) {
	return svc.repo.AddPoints(ctx, id, delta)
}

// GetCredentials returns the Spotify credentials of an admin; ok is false when either token is missing.
func (svc *Service) GetCredentials(ctx context.Context, adminID int) (SpotifyCredentials, bool, error) {
	usr, err := svc.repo.GetUserByID(ctx, adminID)
	if err != nil {
		if err == ErrNotFound {
			return SpotifyCredentials{}, false, nil
		}
		return SpotifyCredentials{}, false, pkgerrors.Wrap(err, "finding admin")
	}
	return usr.Spotify, usr.Spotify.IsComplete(), nil
}

func (svc *Service) PutCredentials(ctx context.Context, adminID int, creds SpotifyCredentials) error {
	return svc.repo.SetSpotifyCredentials(ctx, adminID, creds)
}

func (svc *Service) ClearCredentials(ctx context.Context, adminID int) error {
	return svc.repo.ClearSpotifyCredentials(ctx, adminID)
}
