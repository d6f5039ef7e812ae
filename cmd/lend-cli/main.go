package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	lendcrypto "lendchain/crypto"
	lendsdk "lendchain/sdk/lending"
)

const (
	passphraseEnv = "LEND_KEYSTORE_PASS"
	tokenEnv      = "LEND_RPC_TOKEN"
)

func main() {
	rpcURL := flag.String("rpc", "http://localhost:8545", "JSON-RPC endpoint of the node")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "generate-key":
		err = generateKey(args[1:])
	case "show-address":
		err = showAddress(args[1:])
	case "call":
		err = call(*rpcURL, args[1:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lend-cli [-rpc url] <command>

commands:
  generate-key <path>        create a new key and save it as a v3 keystore file
  show-address <path>        print the bech32 address of a keystore file
  call <method> [params]     invoke a JSON-RPC method; params is a JSON value

the keystore passphrase is read from LEND_KEYSTORE_PASS and the RPC bearer
token for mutating methods from LEND_RPC_TOKEN.`)
}

func passphrase() (string, error) {
	pass := os.Getenv(passphraseEnv)
	if pass == "" {
		return "", fmt.Errorf("%s not set", passphraseEnv)
	}
	return pass, nil
}

func generateKey(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("generate-key requires a keystore path")
	}
	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := lendcrypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := lendcrypto.SaveToKeystore(args[0], key, pass); err != nil {
		return err
	}
	fmt.Printf("address: %s\nkeystore: %s\n", key.PubKey().Address(), args[0])
	return nil
}

func showAddress(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show-address requires a keystore path")
	}
	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := lendcrypto.LoadFromKeystore(args[0], pass)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address())
	return nil
}

func call(rpcURL string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("call requires a method name")
	}
	method := args[0]
	var params interface{}
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		var value json.RawMessage
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("params must be valid JSON: %w", err)
		}
		params = value
	}

	client := lendsdk.New(rpcURL, lendsdk.WithAuthToken(strings.TrimSpace(os.Getenv(tokenEnv))))
	var result json.RawMessage
	if err := client.Call(context.Background(), method, params, &result); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
