package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/upb/authflow/client"
)

// sessionClient is the part of client.Client the commands use
type sessionClient interface {
	Init(ctx context.Context) (bool, error)
	Register(ctx context.Context, name, email, password string) (*client.Profile, error)
	Login(ctx context.Context, email, password string) (*client.Profile, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Profile(ctx context.Context) (*client.Profile, error)
	UpdateName(ctx context.Context, name string) (*client.Profile, error)
	Session() *client.Session
}

type app struct {
	client sessionClient
	out    io.Writer
}

func newApp(c sessionClient, out io.Writer) *app {
	return &app{client: c, out: out}
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

func (a *app) init(ctx context.Context) {
	ok, err := a.client.Init(ctx)
	switch {
	case err != nil:
		a.printf("could not reach server: %v", err)
	case ok:
		a.printf("welcome back, %s", a.client.Session().User().Name)
	}
}

func (a *app) status() string {
	if u := a.client.Session().User(); u != nil && a.client.Session().Authenticated() {
		return u.Email
	}
	return "anonymous"
}

// register NAME... EMAIL PASSWORD
func (a *app) register(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: register NAME EMAIL PASSWORD")
	}
	name := strings.Join(args[:len(args)-2], " ")
	profile, err := a.client.Register(ctx, name, args[len(args)-2], args[len(args)-1])
	if err != nil {
		return err
	}
	a.printf("registered %s <%s>", profile.Name, profile.Email)
	return nil
}

// login EMAIL PASSWORD
func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: login EMAIL PASSWORD")
	}
	profile, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printf("logged in as %s", profile.Name)
	return nil
}

func (a *app) me(ctx context.Context, _ []string) error {
	profile, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	a.printf("%s <%s> id=%s since %s", profile.Name, profile.Email, profile.ID, profile.CreatedAt.Format("2006-01-02"))
	return nil
}

// rename NAME...
func (a *app) rename(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rename NAME")
	}
	profile, err := a.client.UpdateName(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printf("name changed to %s", profile.Name)
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	err := a.client.Logout(ctx)
	a.printf("logged out")
	return err
}

func (a *app) logoutAll(ctx context.Context, _ []string) error {
	n, err := a.client.LogoutAll(ctx)
	if err != nil {
		return err
	}
	a.printf("logged out everywhere (%d sessions)", n)
	return nil
}
