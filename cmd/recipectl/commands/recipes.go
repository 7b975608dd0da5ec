package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"recipebox/pkg/client"

	"github.com/spf13/cobra"
)

func newRecipesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipes",
		Aliases: []string{"recipe", "r"},
		Short:   "Browse and publish recipes",
	}
	cmd.AddCommand(
		newRecipesListCmd(a),
		newRecipesShowCmd(a),
		newRecipesCreateCmd(a),
		newRecipesDeleteCmd(a),
	)
	return cmd
}

func newRecipesListCmd(a *app) *cobra.Command {
	var (
		limit, offset int
		mine          bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), mine)
			if err != nil {
				return err
			}
			list := c.ListRecipes
			if mine {
				list = c.MyRecipes
			}
			recipes, err := list(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return a.printer().recipes(recipes)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max recipes to show (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Recipes to skip")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only your own recipes")
	return cmd
}

func newRecipesShowCmd(a *app) *cobra.Command {
	var withComments bool
	cmd := &cobra.Command{
		Use:   "show <recipe-id>",
		Short: "Show a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), false)
			if err != nil {
				return err
			}
			recipe, err := c.GetRecipe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.printer().recipe(recipe); err != nil {
				return err
			}
			if !withComments || a.jsonOutput {
				return nil
			}
			comments, err := c.ListComments(cmd.Context(), recipe.ID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out)
			a.printer().section(fmt.Sprintf("Comments (%d)", len(comments)))
			return a.printer().comments(comments)
		},
	}
	cmd.Flags().BoolVar(&withComments, "comments", true, "Include the comment thread")
	return cmd
}

func newRecipesCreateCmd(a *app) *cobra.Command {
	var (
		in          client.NewRecipe
		description string
		imagePath   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a recipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			if description != "" {
				in.Description = &description
			}
			if imagePath != "" {
				f, err := os.Open(imagePath)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				defer func() { _ = f.Close() }()
				in.Image = &client.Image{Filename: filepath.Base(imagePath), Content: f}
			}

			recipe, err := c.CreateRecipe(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printer().encode(recipe)
			}
			a.printer().success("Published %q (%s)", recipe.Title, recipe.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Recipe title")
	cmd.Flags().StringVar(&description, "description", "", "Short description")
	cmd.Flags().StringVar(&in.Ingredients, "ingredients", "", "Ingredients, one per line")
	cmd.Flags().StringVar(&in.Instructions, "instructions", "", "Instructions")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a JPEG, PNG, GIF or WebP image")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("ingredients")
	_ = cmd.MarkFlagRequired("instructions")
	return cmd
}

func newRecipesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <recipe-id>",
		Short: "Delete one of your recipes with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := c.DeleteRecipe(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer().success("Deleted recipe %s", args[0])
			return nil
		},
	}
}
