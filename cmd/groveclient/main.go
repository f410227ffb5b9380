// Command groveclient is a minimal driver CLI for groved: it runs the PAKE
// registration/login handshake, downgrades the resulting refresh token into
// capability-scoped access tokens, and exercises storage_put/storage_query.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovedb/grove/internal/auth"
	"github.com/grovedb/grove/internal/pake"
	"github.com/grovedb/grove/internal/wire"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "grove")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "grove")
}

func refreshTokenPath() string { return filepath.Join(cfgDir(), "refresh.bin") }

func saveRefreshToken(tok []byte) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(refreshTokenPath(), tok, 0o600)
}

func loadRefreshToken() ([]byte, error) {
	b, err := os.ReadFile(refreshTokenPath())
	if err != nil {
		return nil, fmt.Errorf("no saved refresh token (login required): %w", err)
	}
	if len(b) != wire.RefreshTokenLen {
		return nil, fmt.Errorf("saved refresh token has wrong length %d", len(b))
	}
	return b, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `groveclient CLI
Usage:
  groveclient -addr HOST:PORT <cmd> [args]

Commands:
  version
  register  -u <username> -p <password>
  login     -u <username> -p <password>        (saves refresh token)
  group-create
  put       -group <hex> -parent <hex> -kind <n> -grandparent <hex> -parent-kind <n> -payload <text>
  query     -group <hex> -parent <hex> -entity <hex> -kind <n>
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", "localhost:7420", "groved address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	switch cmd {
	case "version":
		fmt.Printf("groveclient %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		username := fs.String("u", "", "username")
		password := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		cmdRegister(*addr, *username, *password)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		username := fs.String("u", "", "username")
		password := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		cmdLogin(*addr, *username, *password)

	case "group-create":
		cmdGroupCreate(*addr)

	case "put":
		fs := flag.NewFlagSet("put", flag.ExitOnError)
		group := fs.String("group", "", "group uuid (hex)")
		parent := fs.String("parent", "", "parent uuid (hex)")
		kind := fs.Int("kind", 0, "kind byte")
		grandparent := fs.String("grandparent", "", "grandparent uuid (hex)")
		parentKind := fs.Int("parent-kind", 0, "parent_kind byte")
		payload := fs.String("payload", "", "payload text")
		_ = fs.Parse(flag.Args()[1:])
		cmdPut(*addr, *group, *parent, byte(*kind), *grandparent, byte(*parentKind), []byte(*payload))

	case "query":
		fs := flag.NewFlagSet("query", flag.ExitOnError)
		group := fs.String("group", "", "group uuid (hex)")
		parent := fs.String("parent", "", "parent uuid (hex)")
		entity := fs.String("entity", "", "entity uuid (hex)")
		kind := fs.Int("kind", 0, "kind byte")
		_ = fs.Parse(flag.Args()[1:])
		cmdQuery(*addr, *group, *parent, *entity, byte(*kind))

	default:
		usage()
	}
}

func parseUUID(s string) [wire.UUIDLen]byte {
	var id [wire.UUIDLen]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != wire.UUIDLen {
		fail(fmt.Errorf("uuid %q must be %d hex bytes", s, wire.UUIDLen))
	}
	copy(id[:], b)
	return id
}

func cmdRegister(addr, username, password string) {
	c, err := dial(addr)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	req, err := wire.EncodeUsernameFrame(username, nil)
	if err != nil {
		fail(err)
	}
	challengeBytes, err := c.call(wire.ActionRegistrationStart, req)
	if err != nil {
		fail(err)
	}
	challenge, err := pake.DecodeRegistrationChallenge(challengeBytes)
	if err != nil {
		fail(err)
	}
	reg, err := pake.ClientRegister(challenge, password)
	if err != nil {
		fail(err)
	}
	finishReq, err := wire.EncodeUsernameFrame(username, reg.Encode())
	if err != nil {
		fail(err)
	}
	if _, err := c.call(wire.ActionRegistrationFinish, finishReq); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdLogin(addr, username, password string) {
	c, err := dial(addr)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	client := pake.NewClient()
	loginStart := client.StartLogin(password)

	startReq, err := wire.EncodeUsernameFrame(username, loginStart.Encode())
	if err != nil {
		fail(err)
	}
	challengeBytes, err := c.call(wire.ActionLoginStart, startReq)
	if err != nil {
		fail(err)
	}
	challenge, err := pake.DecodeLoginChallenge(challengeBytes)
	if err != nil {
		fail(err)
	}
	sessionKey, fk2, err := client.FinishLogin(challenge, password)
	if err != nil {
		fail(err)
	}

	finishReq, err := wire.EncodeUsernameFrame(username, fk2)
	if err != nil {
		fail(err)
	}
	sealedResp, err := c.call(wire.ActionLoginFinish, finishReq)
	if err != nil {
		fail(err)
	}

	ciphertext, nonce, err := wire.DecodeSealedRefresh(sealedResp)
	if err != nil {
		fail(err)
	}
	refresh, err := auth.UnsealRefreshToken(sessionKey, ciphertext, nonce)
	if err != nil {
		fail(err)
	}
	if err := saveRefreshToken(refresh); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdGroupCreate(addr string) {
	refresh, err := loadRefreshToken()
	if err != nil {
		fail(err)
	}
	c, err := dial(addr)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionGroupCreate, nil)
	if err != nil {
		fail(err)
	}
	access, err := c.call(wire.ActionAccessGet, agReq)
	if err != nil {
		fail(err)
	}
	group, err := c.call(wire.ActionGroupCreate, access)
	if err != nil {
		fail(err)
	}
	fmt.Println(hex.EncodeToString(group))
}

func cmdPut(addr, groupHex, parentHex string, kind byte, grandparentHex string, parentKind byte, payload []byte) {
	refresh, err := loadRefreshToken()
	if err != nil {
		fail(err)
	}
	group := parseUUID(groupHex)

	c, err := dial(addr)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStoragePut, &group)
	if err != nil {
		fail(err)
	}
	access, err := c.call(wire.ActionAccessGet, agReq)
	if err != nil {
		fail(err)
	}

	putReq, err := wire.EncodeStoragePutRequest(wire.StoragePutRequest{
		Token:       access,
		Parent:      parseUUID(parentHex),
		Kind:        kind,
		Grandparent: parseUUID(grandparentHex),
		ParentKind:  parentKind,
		Payload:     payload,
	})
	if err != nil {
		fail(err)
	}
	id, err := c.call(wire.ActionStoragePut, putReq)
	if err != nil {
		fail(err)
	}
	fmt.Println(hex.EncodeToString(id))
}

func cmdQuery(addr, groupHex, parentHex, entityHex string, kind byte) {
	refresh, err := loadRefreshToken()
	if err != nil {
		fail(err)
	}
	group := parseUUID(groupHex)

	c, err := dial(addr)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStorageQuery, &group)
	if err != nil {
		fail(err)
	}
	access, err := c.call(wire.ActionAccessGet, agReq)
	if err != nil {
		fail(err)
	}

	queryReq, err := wire.EncodeStorageQueryRequest(access, []wire.QueryTriple{
		{Parent: parseUUID(parentHex), Entity: parseUUID(entityHex), Kinds: []byte{kind}},
	})
	if err != nil {
		fail(err)
	}
	respBytes, err := c.call(wire.ActionStorageQuery, queryReq)
	if err != nil {
		fail(err)
	}

	result, err := wire.DecodeQueryResult(respBytes)
	if err != nil {
		fail(err)
	}
	for _, g := range result.Groups {
		for _, k := range g.Kinds {
			for _, e := range k.Entries {
				fmt.Printf("%s kind=%d id=%s user=%s value=%q\n",
					hex.EncodeToString(g.Parent[:]), k.Kind,
					hex.EncodeToString(e.ID[:]), hex.EncodeToString(e.User[:]), string(e.Value))
			}
		}
	}
}
