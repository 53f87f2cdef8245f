package user

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [name] [email] [age]",
		Short: "Creates a new user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("age must be a number: %w", err)
			}
			userID, err := userStore.Create(args[0], args[1], age)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s\n", userID)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [userId]",
		Short: "Reads a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := userStore.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [userId]",
		Short: "Updates the fields of a user given by flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updates users.Updates
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				updates.Name = &name
			}
			if cmd.Flags().Changed("email") {
				email, _ := cmd.Flags().GetString("email")
				updates.Email = &email
			}
			if cmd.Flags().Changed("age") {
				age, _ := cmd.Flags().GetInt("age")
				updates.Age = &age
			}
			if updates.IsEmpty() {
				return fmt.Errorf("nothing to update, set at least one of --name, --email, --age")
			}

			user, err := userStore.Update(args[0], updates)
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [userId]",
		Short: "Deletes a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := userStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := userStore.List()
			if err != nil {
				return err
			}
			fmt.Printf("%d users\n", len(list))
			return printJSON(list)
		},
	}
)

func init() {
	updateCmd.Flags().String("name", "", "New name of the user")
	updateCmd.Flags().String("email", "", "New email of the user")
	updateCmd.Flags().Int("age", 0, "New age of the user")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
