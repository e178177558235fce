package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"essence/internal/blog"
	"essence/internal/session"
)

func (c *cli) articlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "articles",
		Short: "List articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := c.app.Blog.Home(cmd.Context())
			if err != nil {
				return err
			}
			printCards(cmd.OutOrStdout(), page.Articles)
			return nil
		},
	}
}

func printCards(out io.Writer, cards []blog.ArticleCard) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tLIKES")
	for _, card := range cards {
		likes := fmt.Sprint(card.Likes)
		if card.Liked {
			likes += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", card.ID, card.Title, card.CategoryName, likes)
	}
	w.Flush()
}

func (c *cli) articleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "article <id>",
		Short: "Show an article with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := c.app.Blog.Article(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			a := page.Article
			fmt.Fprintf(out, "%s\n[%s] %d likes\n\n%s\n", a.Title, a.CategoryName, a.Likes, a.Content)

			if len(page.Comments) > 0 {
				fmt.Fprintf(out, "\nComments (%d)\n", len(page.Comments))
				for _, cm := range page.Comments {
					author := "anonymous"
					if cm.Author != nil && cm.Author.Name != "" {
						author = cm.Author.Name
					}
					fmt.Fprintf(out, "  %s: %s\n", author, cm.Text)
				}
			}
			if len(page.Related) > 0 {
				fmt.Fprintln(out, "\nRelated")
				printCards(out, page.Related)
			}
			return nil
		},
	}
}

func (c *cli) likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Blog.Like(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Liked")
			return nil
		},
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text>...",
		Short: "Comment on an article",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			comment, err := c.app.Blog.Comment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment %s posted\n", comment.ID)
			return nil
		},
	}
}

func (c *cli) writeCmd() *cobra.Command {
	var in blog.WriteInput
	var file, category string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Publish an article",
		Long: `Publish an article as the logged in user. The body comes from --content,
or from --file ("-" reads standard input).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				var r io.Reader = cmd.InOrStdin()
				if file != "-" {
					f, err := os.Open(file)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				body, err := io.ReadAll(r)
				if err != nil {
					return fmt.Errorf("read article body: %w", err)
				}
				in.Content = string(body)
			}

			in.CategoryID = session.ID(category)
			article, err := c.app.Blog.Write(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %q (id %s)\n", article.Title, article.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "article title")
	cmd.Flags().StringVarP(&in.Content, "content", "c", "", "article body")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the body from a file")
	cmd.Flags().StringVar(&category, "category", "", "category id")

	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var in blog.RegisterInput
	var avatarPath string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Long:  `Create an account. The password is read from standard input.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Username = args[0]
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			in.Password = password

			if avatarPath != "" {
				f, err := os.Open(avatarPath)
				if err != nil {
					return err
				}
				defer f.Close()
				info, err := f.Stat()
				if err != nil {
					return err
				}
				in.Avatar = &blog.Avatar{
					Filename:    filepath.Base(avatarPath),
					ContentType: mime.TypeByExtension(filepath.Ext(avatarPath)),
					Size:        info.Size(),
					Body:        f,
				}
			}

			if err := c.app.Blog.Register(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created, log in with: essence login %s\n", in.Username, in.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Bio, "bio", "", "short bio")
	cmd.Flags().StringVar(&avatarPath, "avatar", "", "profile image to upload")

	return cmd
}
