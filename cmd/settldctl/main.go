// settldctl is the operator-side companion to the settlement kernel: key
// generation, operator-action signing and verification, canonical hashing,
// and wallet-assignment dry runs, all over JSON files.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nooterra/settld/pkg/canonical"
	"github.com/nooterra/settld/pkg/operator"
	"github.com/nooterra/settld/pkg/reason"
	"github.com/nooterra/settld/pkg/walletassign"
)

const usage = `usage:
  settldctl keygen --out-prefix <path>
  settldctl action sign --in <action.json> --key <path> --out <path> [--signed-at-utc <rfc3339>]
  settldctl action verify --in <signed.json> --pub <path>
  settldctl hash --in <payload.json>
  settldctl wallet resolve --in <request.json>`

var (
	passLine = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLine = color.New(color.FgRed, color.Bold).SprintFunc()
)

func main() {
	if len(os.Args) < 2 {
		fail(usage)
	}
	switch os.Args[1] {
	case "keygen":
		runKeygen(os.Args[2:])
	case "action":
		runAction(os.Args[2:])
	case "hash":
		runHash(os.Args[2:])
	case "wallet":
		runWallet(os.Args[2:])
	default:
		fail(usage)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, failLine("FAIL"), msg)
	os.Exit(1)
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	outPrefix := fs.String("out-prefix", "", "path prefix for <prefix>.pub and <prefix>.key")
	_ = fs.Parse(args)
	if strings.TrimSpace(*outPrefix) == "" {
		fail("--out-prefix is required")
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fail("generate key: " + err.Error())
	}
	if err := os.WriteFile(*outPrefix+".pub", []byte(base64.RawURLEncoding.EncodeToString(pub)+"\n"), 0o644); err != nil {
		fail("write public key: " + err.Error())
	}
	if err := os.WriteFile(*outPrefix+".key", []byte(base64.RawURLEncoding.EncodeToString(priv)+"\n"), 0o600); err != nil {
		fail("write private key: " + err.Error())
	}
	keyID, err := operator.KeyIDFromPublicKey(pub)
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(passLine("PASS"), "key pair written, keyId", keyID)
}

func runAction(args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	switch args[0] {
	case "sign":
		runActionSign(args[1:])
	case "verify":
		runActionVerify(args[1:])
	default:
		fail(usage)
	}
}

func runActionSign(args []string) {
	fs := flag.NewFlagSet("action sign", flag.ExitOnError)
	inPath := fs.String("in", "", "path to unsigned action input json")
	keyPath := fs.String("key", "", "path to base64url ed25519 private key")
	outPath := fs.String("out", "", "path to write the signed action json")
	signedAtUTC := fs.String("signed-at-utc", "", "signature timestamp, RFC3339 UTC (default now)")
	_ = fs.Parse(args)
	if *inPath == "" || *keyPath == "" || *outPath == "" {
		fail("--in, --key, and --out are required")
	}

	var in operator.ActionInput
	readJSONFile(*inPath, &in)
	unsigned, err := operator.Build(in)
	if err != nil {
		fail("build action: " + err.Error())
	}

	priv := ed25519.PrivateKey(readKeyFile(*keyPath, ed25519.PrivateKeySize))
	pub := priv.Public().(ed25519.PublicKey)

	signedAt := time.Now().UTC()
	if strings.TrimSpace(*signedAtUTC) != "" {
		parsed, err := time.Parse(time.RFC3339Nano, *signedAtUTC)
		if err != nil {
			fail("--signed-at-utc must be RFC3339: " + err.Error())
		}
		signedAt = parsed
	}

	signed, err := operator.Sign(unsigned, signedAt, pub, priv)
	if err != nil {
		fail("sign action: " + err.Error())
	}
	writeJSONFile(*outPath, signed)

	summary := signed.Signature.ActionHash
	if desc, ok := reason.Describe(signed.JustificationCode); ok {
		summary += " (" + desc + ")"
	}
	fmt.Println(passLine("PASS"), "signed", signed.ActionID, summary)
}

func runActionVerify(args []string) {
	fs := flag.NewFlagSet("action verify", flag.ExitOnError)
	inPath := fs.String("in", "", "path to signed action json")
	pubPath := fs.String("pub", "", "path to base64url ed25519 public key")
	_ = fs.Parse(args)
	if *inPath == "" || *pubPath == "" {
		fail("--in and --pub are required")
	}

	var signed operator.Action
	readJSONFile(*inPath, &signed)
	pub := ed25519.PublicKey(readKeyFile(*pubPath, ed25519.PublicKeySize))

	res := operator.Verify(signed, pub)
	if !res.OK {
		fail(string(res.Code) + ": " + res.Reason)
	}
	fmt.Println(passLine("PASS"), "verified", res.ActionHash, "signed by", res.KeyID)
}

func runHash(args []string) {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	inPath := fs.String("in", "", "path to payload json")
	_ = fs.Parse(args)
	if *inPath == "" {
		fail("--in is required")
	}

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		fail("read payload: " + err.Error())
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		fail("parse payload: " + err.Error())
	}
	hash, canonicalBytes, err := canonical.Sum(payload)
	if err != nil {
		fail("canonicalize: " + err.Error())
	}
	fmt.Println(passLine("PASS"), hash)
	fmt.Println(string(canonicalBytes))
}

func runWallet(args []string) {
	if len(args) < 1 || args[0] != "resolve" {
		fail(usage)
	}
	fs := flag.NewFlagSet("wallet resolve", flag.ExitOnError)
	inPath := fs.String("in", "", "path to resolution request json")
	_ = fs.Parse(args[1:])
	if *inPath == "" {
		fail("--in is required")
	}

	var in walletassign.Input
	readJSONFile(*inPath, &in)
	assignment := walletassign.Resolve(in)
	if assignment == nil {
		fail("no candidate policy survives filtering")
	}
	out, _ := json.Marshal(assignment)
	fmt.Println(passLine("PASS"), string(out))
}

func readKeyFile(path string, wantLen int) []byte {
	raw, err := os.ReadFile(path)
	if err != nil {
		fail("read " + path + ": " + err.Error())
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		fail("decode " + path + ": " + err.Error())
	}
	if len(decoded) != wantLen {
		fail(fmt.Sprintf("%s: expected %d key bytes, got %d", path, wantLen, len(decoded)))
	}
	return decoded
}

func readJSONFile(path string, dst any) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fail("read " + path + ": " + err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		fail("parse " + path + ": " + err.Error())
	}
}

func writeJSONFile(path string, v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encode " + path + ": " + err.Error())
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		fail("write " + path + ": " + err.Error())
	}
}
