package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	learnhub "github.com/chimerakang/learnhub-go"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// idCommand builds a command taking one numeric argument.
func idCommand(use, short string, run func(c *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(c, id)
		},
	}
}

func coursesCommand(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "browse the catalogue and track learning",
	}

	var filters learnhub.CourseFilters
	list := &cobra.Command{
		Use:   "list",
		Short: "list courses",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a := get()
			page, err := a.client.Courses().List(a.ctx(c.Context()), filters)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), page)
		},
	}
	f := list.Flags()
	f.StringVar(&filters.Search, "search", "", "free-text filter")
	f.StringVar(&filters.Category, "category", "", "category")
	f.StringVar(&filters.Level, "level", "", "level")
	f.StringVar(&filters.SortBy, "sort", "", "sort field")
	f.IntVar(&filters.Page, "page", 0, "page number")
	f.IntVar(&filters.Limit, "limit", 0, "page size")

	cmd.AddCommand(
		list,
		idCommand("get", "show a course", func(c *cobra.Command, id int64) error {
			a := get()
			v, err := a.client.Courses().Get(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
		idCommand("sessions", "list the sessions of a course", func(c *cobra.Command, id int64) error {
			a := get()
			v, err := a.client.Courses().Sessions(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
		idCommand("contents", "list the modules of a course", func(c *cobra.Command, id int64) error {
			a := get()
			v, err := a.client.Courses().Contents(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
		idCommand("progress", "show your progress in a course", func(c *cobra.Command, id int64) error {
			a := get()
			if _, err := a.requireUser(); err != nil {
				return err
			}
			v, err := a.client.Courses().Progress(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
		idCommand("enroll", "enroll in a course session", func(c *cobra.Command, id int64) error {
			a := get()
			if _, err := a.requireUser(); err != nil {
				return err
			}
			return a.client.Courses().Enroll(a.ctx(c.Context()), id)
		}),
		idCommand("complete", "mark a content item completed", func(c *cobra.Command, id int64) error {
			a := get()
			if _, err := a.requireUser(); err != nil {
				return err
			}
			v, err := a.client.Courses().MarkContentCompleted(a.ctx(c.Context()), id)
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), v)
		}),
		idCommand("favorite", "add a course to favorites", func(c *cobra.Command, id int64) error {
			a := get()
			if _, err := a.requireUser(); err != nil {
				return err
			}
			return a.client.Courses().AddFavorite(a.ctx(c.Context()), id)
		}),
		idCommand("unfavorite", "remove a course from favorites", func(c *cobra.Command, id int64) error {
			a := get()
			if _, err := a.requireUser(); err != nil {
				return err
			}
			return a.client.Courses().RemoveFavorite(a.ctx(c.Context()), id)
		}),
		&cobra.Command{
			Use:   "favorites",
			Short: "list favorite courses",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				a := get()
				if _, err := a.requireUser(); err != nil {
					return err
				}
				v, err := a.client.Courses().Favorites(a.ctx(c.Context()))
				if err != nil {
					return err
				}
				return printJSON(c.OutOrStdout(), v)
			},
		},
		&cobra.Command{
			Use:   "categories",
			Short: "list catalogue categories",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				a := get()
				v, err := a.client.Courses().Categories(a.ctx(c.Context()))
				if err != nil {
					return err
				}
				return printJSON(c.OutOrStdout(), v)
			},
		},
		&cobra.Command{
			Use:   "search QUERY...",
			Short: "search the catalogue",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				a := get()
				v, err := a.client.Courses().Search(a.ctx(c.Context()), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printJSON(c.OutOrStdout(), v)
			},
		},
	)
	return cmd
}
