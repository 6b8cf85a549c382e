package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	learnhub "github.com/chimerakang/learnhub-go"
)

// signedIn wraps run so it only executes with a session.
func signedIn(get appFunc, run func(c *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		a := get()
		if _, err := a.requireUser(); err != nil {
			return err
		}
		return run(c, a, args)
	}
}

// writeOutput writes data to path atomically, or to stdout when path is "-".
func writeOutput(c *cobra.Command, path string, data []byte) error {
	if path == "-" {
		_, err := c.OutOrStdout().Write(data)
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(c.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), path)
	return nil
}

// streamOutput writes what fill produces to path atomically, or to stdout
// when path is "-". The file is only replaced when fill succeeds.
func streamOutput(c *cobra.Command, path string, fill func(io.Writer) (int64, error)) error {
	if path == "-" {
		_, err := fill(c.OutOrStdout())
		return err
	}
	pr, pw := io.Pipe()
	var n int64
	go func() {
		var err error
		n, err = fill(pw)
		_ = pw.CloseWithError(err)
	}()
	if err := atomic.WriteFile(path, pr); err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(c.ErrOrStderr(), "wrote %d bytes to %s\n", n, path)
	return nil
}

func profileCommand(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "manage your account",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "print your profile",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			u, err := a.client.Users().Profile(a.ctx(c.Context()))
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), u)
		}),
	}

	var data learnhub.UpdateProfileData
	update := &cobra.Command{
		Use:   "update",
		Short: "change profile fields",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			u, err := a.client.Users().UpdateProfile(a.ctx(c.Context()), data)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), u)
		}),
	}
	uf := update.Flags()
	uf.StringVar(&data.FirstName, "first-name", "", "first name")
	uf.StringVar(&data.LastName, "last-name", "", "last name")
	uf.StringVar(&data.Bio, "bio", "", "bio")
	uf.StringVar(&data.Phone, "phone", "", "phone number")

	var pw learnhub.ChangePasswordData
	password := &cobra.Command{
		Use:   "password",
		Short: "change your password",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			return a.client.Users().ChangePassword(a.ctx(c.Context()), pw)
		}),
	}
	password.Flags().StringVar(&pw.CurrentPassword, "current", "", "current password")
	password.Flags().StringVar(&pw.NewPassword, "new", "", "new password")

	avatar := &cobra.Command{
		Use:   "avatar FILE",
		Short: "upload a profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: signedIn(get, func(c *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			resp, err := a.client.Users().UploadAvatar(a.ctx(c.Context()), args[0], f)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), resp)
		}),
	}

	var confirm bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "delete your account",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			if !confirm {
				return errors.New("account deletion is permanent, pass --yes to confirm")
			}
			if err := a.client.Users().DeleteAccount(a.ctx(c.Context())); err != nil {
				return err
			}
			a.manager.Logout(c.Context())
			return nil
		}),
	}
	del.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")

	var exportPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "download everything stored about you",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			data, err := a.client.Users().ExportData(a.ctx(c.Context()))
			if err != nil {
				return err
			}
			return writeOutput(c, exportPath, data)
		}),
	}
	export.Flags().StringVarP(&exportPath, "output", "o", "learnhub-export.json", `destination file, "-" for stdout`)

	cmd.AddCommand(show, update, password, avatar, del, export)
	return cmd
}

func certificatesCommand(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificates",
		Short: "list and download certificates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "list your certificates",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			v, err := a.client.Users().Certificates(a.ctx(c.Context()))
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
	}

	var out string
	download := &cobra.Command{
		Use:   "download ID",
		Short: "download a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: signedIn(get, func(c *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			data, err := a.client.Users().DownloadCertificate(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = fmt.Sprintf("certificate-%d.pdf", id)
			}
			return writeOutput(c, path, data)
		}),
	}
	download.Flags().StringVarP(&out, "output", "o", "", `destination file, "-" for stdout (default certificate-ID.pdf)`)

	cmd.AddCommand(list, download)
	return cmd
}

func enrollmentsCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "enrollments",
		Short: "list your enrollments",
		Args:  cobra.NoArgs,
		RunE: signedIn(get, func(c *cobra.Command, a *app, _ []string) error {
			v, err := a.client.Users().Enrollments(a.ctx(c.Context()))
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
	}
}
