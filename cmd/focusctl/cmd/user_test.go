package cmd_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"go.pilab.hu/focusboard/cmd/focusctl/cmd"
	"go.pilab.hu/focusboard/config"
	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/auth"
	"go.pilab.hu/focusboard/internal/memrepo"
	"go.pilab.hu/focusboard/services"
)

type cliFixture struct {
	repo   *memrepo.UserRepository
	opened int
	closed int
}

func newCLIFixture() *cliFixture {
	return &cliFixture{repo: memrepo.NewUserRepository()}
}

func (f *cliFixture) open(_ context.Context, _ *config.ServerConfig) (*cmd.Backend, error) {
	f.opened++
	return &cmd.Backend{
		Users: services.NewUserService(f.repo, auth.NewBcryptPasswordHasher(bcrypt.MinCost), nil),
		Close: func(context.Context) { f.closed++ },
	}, nil
}

func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := cmd.NewRootCmd(f.open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserCreate(t *testing.T) {
	f := newCLIFixture()

	out, err := f.run(t, "", "user", "create", "alice", "--password", "wonderland")
	require.NoError(t, err)
	assert.Contains(t, out, "login: alice")
	assert.Equal(t, 1, f.opened)
	assert.Equal(t, 1, f.closed)

	user, err := f.repo.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("wonderland")))

	_, err = f.run(t, "", "user", "create", "alice", "--password", "wonderland")
	assert.ErrorContains(t, err, "already exists")
}

func TestUserCreate_PasswordStdin(t *testing.T) {
	f := newCLIFixture()

	_, err := f.run(t, "looking-glass\n", "user", "create", "bob", "--password-stdin")
	require.NoError(t, err)

	user, err := f.repo.GetByLogin(context.Background(), "bob")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("looking-glass")))
}

func TestUserCreate_ShortPasswordNeverOpensBackend(t *testing.T) {
	f := newCLIFixture()

	_, err := f.run(t, "", "user", "create", "alice", "--password", "short")
	assert.ErrorContains(t, err, "at least 8 characters")
	assert.Zero(t, f.opened)
}

func TestUserPasswd(t *testing.T) {
	f := newCLIFixture()

	_, err := f.run(t, "", "user", "create", "alice", "--password", "wonderland")
	require.NoError(t, err)

	out, err := f.run(t, "", "user", "passwd", "alice", "--password", "rabbit-hole")
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated for alice")

	user, err := f.repo.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("rabbit-hole")))

	_, err = f.run(t, "", "user", "passwd", "nobody", "--password", "rabbit-hole")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserListAndDelete(t *testing.T) {
	f := newCLIFixture()

	out, err := f.run(t, "", "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No users found.")

	for _, login := range []string{"bob", "alice"} {
		_, err := f.run(t, "", "user", "create", login, "--password", "wonderland")
		require.NoError(t, err)
	}

	out, err = f.run(t, "", "users", "list")
	require.NoError(t, err)

	var listed []struct {
		Login string `yaml:"login"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "alice", listed[0].Login)
	assert.Equal(t, "bob", listed[1].Login)

	out, err = f.run(t, "", "user", "delete", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "User bob deleted.")

	_, err = f.repo.GetByLogin(context.Background(), "bob")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.run(t, "", "user", "delete", "bob")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
