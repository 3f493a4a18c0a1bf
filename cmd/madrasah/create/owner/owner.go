package owner

import (
	"errors"
	"fmt"
	"os"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/auth"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/models"
	"madrasah/internal/store"
	storeMysql "madrasah/internal/store/mysql"
	"madrasah/internal/validate"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEmail    = "email"
	flagName     = "name"
	flagPassword = "password"
)

var ErrorOwnerExists = errors.New("owner_exists")

type owner struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required"`
	Password string `validate:"required"`
}

type ownerView struct {
	Id    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}

var Command = cli.NewCommand(cli.CommandOpts{
	Name: "owner",
	Flags: config.GetMysqlFlags().Append(cli.Flags{
		{
			Name:         flagEmail,
			Short:        'e',
			DefaultValue: "",
			Usage:        "email address the platform owner logs in with",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         flagName,
			DefaultValue: "Platform Owner",
			Usage:        "display name of the platform owner",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         flagPassword,
			DefaultValue: "",
			Usage:        "initial password of the platform owner, held to the same rules as signup",
			Type:         cli.FlagTypeString,
		},
	}),
	Use:   "owner",
	Short: "Creates a platform owner account",
	Long:  "Creates a super admin who can manage every organisation's lifecycle, there is no API route that does this",
	Run: func(cmd *cobra.Command, opts *cli.Command, args []string) error {
		input := owner{
			Email:    viper.GetString(flagEmail),
			Name:     viper.GetString(flagName),
			Password: viper.GetString(flagPassword),
		}
		if err := validate.Struct(input); err != nil {
			return fmt.Errorf("%w: %w", cli.ErrorInvalidInput, err)
		}
		if err := validate.Password(input.Password); err != nil {
			return fmt.Errorf("%w: password: %w", cli.ErrorInvalidInput, err)
		}
		mysqlInstance, err := connect.Mysql(opts)
		if err != nil {
			return err
		}
		dataStore := storeMysql.New(mysqlInstance.GetClient())
		passwordHash, err := auth.HashPassword(input.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user := &models.User{
			Email:        input.Email,
			Name:         input.Name,
			PasswordHash: passwordHash,
			IsSuperAdmin: true,
		}
		if err := dataStore.CreateUser(opts.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("user[%s] already exists: %w", input.Email, ErrorOwnerExists)
			}
			return fmt.Errorf("failed to create owner: %w", err)
		}
		logrus.Infof("created platform owner[%s]", user.Id)
		output := ownerView{Id: user.Id, Email: user.Email, Name: user.Name}
		return cli.Print(os.Stdout, viper.GetString("output"), output, func() (*cli.Table, error) {
			table := cli.NewTable("id", "email", "name")
			table.NewRow(user.Id, user.Email, user.Name)
			return table, nil
		})
	},
})
