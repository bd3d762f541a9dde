package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/channelhub/internal/client/client"
	"github.com/dmitrijs2005/channelhub/internal/client/models"
	"github.com/dmitrijs2005/channelhub/internal/common"
)

// getSimpleText and getPassword are test seams.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) report(err error) error {
	if errors.Is(err, client.ErrUnavailable) {
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	} else {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return err
}

func (a *App) prompt(prompts ...string) ([]string, error) {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, p, a.out)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *App) printUser(u *models.User) {
	fmt.Fprintf(a.out, "%s <%s> %s\n", u.Username, u.Email, u.FullName)
	if u.Avatar != "" {
		fmt.Fprintf(a.out, "  avatar: %s\n", u.Avatar)
	}
	if u.CoverImage != "" {
		fmt.Fprintf(a.out, "  cover:  %s\n", u.CoverImage)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "  member since %s\n", u.CreatedAt.Format(time.DateOnly))
	}
}

func (a *App) Register(ctx context.Context) error {
	v, err := a.prompt("Full name", "Email", "Username")
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Register(ctx, v[0], v[1], v[2], password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Registered %s, now log in\n", u.Username)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	v, err := a.prompt("Username or email")
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Login(ctx, v[0], password)
	if err != nil {
		return a.report(err)
	}
	a.userName = u.Username
	fmt.Fprintf(a.out, "Logged in as %s\n", u.Username)
	return nil
}

func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.CurrentUser(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printUser(u)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.userName = ""
			fmt.Fprintln(a.out, "Session expired, please log in again")
		}
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)
	newPassword, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) UpdateAccount(ctx context.Context) error {
	v, err := a.prompt("Full name", "Email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.UpdateAccount(ctx, v[0], v[1])
	if err != nil {
		return a.report(err)
	}
	a.printUser(u)
	return nil
}

func (a *App) Avatar(ctx context.Context, path string) error {
	return a.uploadImage(ctx, path, a.authService.UploadAvatar)
}

func (a *App) Cover(ctx context.Context, path string) error {
	return a.uploadImage(ctx, path, a.authService.UploadCoverImage)
}

func (a *App) uploadImage(ctx context.Context, path string, fn func(context.Context, string) (*models.MediaUpload, error)) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	up, err := fn(ctx, path)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Uploaded %s as %s\n", up.Kind, up.Key)
	return nil
}

// Logout always drops the local session, even if the server call fails.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.authService.Logout(ctx)
	a.userName = ""
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
