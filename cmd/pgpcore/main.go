// This is free and unencumbered software released into the public domain.

package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/skeeto/optparse-go"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/ssh/terminal"

	"nullprogram.com/x/pgpcore/openpgp"
)

const (
	kdfTime = 8
	kdfMemory = 1024 * 1024 // 1 GB
)

const (
	cmdKey = iota
	cmdSign
	cmdClearsign
	cmdCertify
	cmdRevoke
	cmdEncrypt
	cmdDecrypt
)

// fatal prints the message like fmt.Printf and then os.Exit(1); no panic
// ever reaches main.
func fatal(format string, args...interface{}) {
	buf := bytes.NewBufferString("pgpcore: ")
	fmt.Fprintf(buf, format, args...)
	buf.WriteRune('\n')
	os.Stderr.Write(buf.Bytes())
	os.Exit(1)
}

type config struct {
	cmd int
	args []string

	armor bool
	check []byte
	help bool
	input string
	load string
	pinentry string
	public bool
	repeat int
	subkey bool
	created int64
	uid string
	verbose bool
	algorithm string
	bits int
	recipients []string
	passphraseEnc bool
	cipher string
	throwKeyID bool
	revokeWhy byte
}

func usage(w io.Writer) {
	bw := bufio.NewWriter(w)
	i := " "
	p := "pgpcore"
	f := func(s...interface{}) { fmt.Fprintln(bw, s...) }
	f("Usage:")
	f(i, p, "-K [-a] [-u id] [-A algo] [-s] generate a key")
	f(i, p, "-S [-a] [-l key] <doc >doc.sig detached-sign")
	f(i, p, "-T [-l key] <doc >doc.sig.txt cleartext-sign")
	f(i, p, "-C [-l key] -u id certify a UID")
	f(i, p, "-R [-l key] [-w reason] revoke")
	f(i, p, "-E [-l key] -t recipient [-P] encrypt")
	f(i, p, "-D [-l key] [-P] decrypt")
	f("Commands:")
	f(i, "-K, --keygen output a key (default)")
	f(i, "-S, --sign output detached signatures")
	f(i, "-T, --clearsign output a cleartext signature")
	f(i, "-C, --certify add a self-certified user ID to the key")
	f(i, "-R, --revoke emit a revocation signature")
	f(i, "-E, --encrypt encrypt a message")
	f(i, "-D, --decrypt decrypt a message")
	f("Options:")
	f(i, "-a, --armor encode output in ASCII armor")
	f(i, "-A, --algorithm NAME key algorithm: ed25519, rsa, nistp256 [ed25519]")
	f(i, "-b, --bits N RSA modulus size [2048]")
	f(i, "-c, --check KEYID require last Key ID bytes to match")
	f(i, "-h, --help print this help message")
	f(i, "-i, --input FILE read passphrase from file")
	f(i, "-l, --load FILE load key from file instead of generating")
	f(i, "-n, --now use current time as creation date")
	f(i, "-e, --pinentry[=CMD] pinentry (unsupported: always an error)")
	f(i, "-p, --public only output the public key")
	f(i, "-P, --passphrase use passphrase (SKESK) rather than public key")
	f(i, "-r, --repeat N number of repeated passphrase prompts")
	f(i, "-s, --subkey also output an encryption subkey")
	f(i, "-t, --to RECIPIENT recipient public key file (repeatable)")
	f(i, "-u, --uid USERID user ID for the key")
	f(i, "-w, --why REASON revocation reason code")
	f(i, "-v, --verbose print additional information")
	bw.Flush()
}

func parse() *config {
	conf := config{cmd: cmdKey, repeat: 1, algorithm: "ed25519", bits: 2048}

	options := []optparse.Option{
		{"sign", 'S', optparse.KindNone},
		{"keygen", 'K', optparse.KindNone},
		{"clearsign", 'T', optparse.KindNone},
		{"certify", 'C', optparse.KindNone},
		{"revoke", 'R', optparse.KindNone},
		{"encrypt", 'E', optparse.KindNone},
		{"decrypt", 'D', optparse.KindNone},

		{"armor", 'a', optparse.KindNone},
		{"algorithm", 'A', optparse.KindRequired},
		{"bits", 'b', optparse.KindRequired},
		{"check", 'c', optparse.KindRequired},
		{"help", 'h', optparse.KindNone},
		{"input", 'i', optparse.KindRequired},
		{"load", 'l', optparse.KindRequired},
		{"now", 'n', optparse.KindNone},
		{"public", 'p', optparse.KindNone},
		{"passphrase", 'P', optparse.KindNone},
		{"pinentry", 'e', optparse.KindOptional},
		{"repeat", 'r', optparse.KindRequired},
		{"subkey", 's', optparse.KindNone},
		{"to", 't', optparse.KindRequired},
		{"uid", 'u', optparse.KindRequired},
		{"why", 'w', optparse.KindRequired},
		{"verbose", 'v', optparse.KindNone},
	}

	var repeatSeen bool
	var uidSeen bool

	args := os.Args
	results, rest, err := optparse.Parse(options, args)
	if err != nil {
		usage(os.Stderr)
		fatal("%s", err)
	}
	for _, result := range results {
		switch result.Long {
		case "sign":
			conf.cmd = cmdSign
		case "keygen":
			conf.cmd = cmdKey
		case "clearsign":
			conf.cmd = cmdClearsign
		case "certify":
			conf.cmd = cmdCertify
		case "revoke":
			conf.cmd = cmdRevoke
		case "encrypt":
			conf.cmd = cmdEncrypt
		case "decrypt":
			conf.cmd = cmdDecrypt

		case "armor":
			conf.armor = true
		case "algorithm":
			conf.algorithm = result.Optarg
		case "bits":
			n, err := strconv.Atoi(result.Optarg)
			if err != nil {
				fatal("--bits (-b): %s", err)
			}
			conf.bits = n
		case "check":
			check, err := hex.DecodeString(result.Optarg)
			if err != nil {
				fatal("%s: %q", err, result.Optarg)
			}
			conf.check = check
		case "help":
			usage(os.Stdout)
			os.Exit(0)
		case "input":
			conf.input = result.Optarg
		case "load":
			conf.load = result.Optarg
		case "now":
			conf.created = time.Now().Unix()
		case "public":
			conf.public = true
		case "passphrase":
			conf.passphraseEnc = true
		case "pinentry":
			if result.Optarg != "" {
				conf.pinentry = result.Optarg
			} else {
				conf.pinentry = "pinentry"
			}
		case "repeat":
			n, err := strconv.Atoi(result.Optarg)
			if err != nil {
				fatal("--repeat (-r): %s", err)
			}
			conf.repeat = n
			repeatSeen = true
		case "subkey":
			conf.subkey = true
		case "to":
			conf.recipients = append(conf.recipients, result.Optarg)
		case "uid":
			conf.uid = result.Optarg
			if len(conf.uid) > 255 {
				fatal("user ID length must be <= 255 bytes")
			}
			if !utf8.ValidString(conf.uid) {
				fatal("user ID must be valid UTF-8")
			}
			uidSeen = true
		case "why":
			n, err := strconv.Atoi(result.Optarg)
			if err != nil {
				fatal("--why (-w): %s", err)
			}
			conf.revokeWhy = byte(n)
		case "verbose":
			conf.verbose = true
		}
	}

	if !uidSeen && conf.load == "" && conf.cmd == cmdKey {
		if email := os.Getenv("EMAIL"); email != "" {
			if realname := os.Getenv("REALNAME"); realname != "" {
				conf.uid = fmt.Sprintf("%s <%s>", realname, email)
			}
		}
		if conf.uid == "" {
			fatal("--uid or --load required (or $REALNAME and $EMAIL)")
		}
	}

	if conf.check == nil {
		if check, err := hex.DecodeString(os.Getenv("KEYID")); err == nil {
			conf.check = check
		}
	}
	if len(conf.check) > 0 && !repeatSeen {
		conf.repeat = 0
	}

	conf.args = rest
	return &conf
}

// kdf derives a 64-byte seed from the given passphrase, scaled by the
// caller according to how many times the result will be re-derived.
func kdf(passphrase, uid []byte, scale int) []byte {
	t := uint32(kdfTime * scale)
	memory := uint32(kdfMemory * scale)
	return argon2.IDKey(passphrase, uid, t, memory, 1, 64)
}

func readPassphrase(conf *config) ([]byte, error) {
	if conf.input != "" {
		return firstLine(conf.input)
	}
	if conf.pinentry != "" {
		return pinentryPassphrase(conf.pinentry, conf.repeat)
	}
	return terminalPassphrase(conf.repeat)
}

func firstLine(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if !s.Scan() {
		if err := s.Err(); err != nil && err != io.EOF {
			return nil, err
		}
		return nil, nil
	}
	return s.Bytes(), nil
}

// terminalPassphrase prompts on the controlling terminal with echo off,
// repeating the prompt `repeat` times and requiring agreement.
func terminalPassphrase(repeat int) ([]byte, error) {
	if repeat < 1 {
		repeat = 1
	}
	fd := int(os.Stdin.Fd())
	var first []byte
	for i := 0; i < repeat; i++ {
		fmt.Fprint(os.Stderr, "passphrase: ")
		line, err := terminal.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = line
		} else if !bytes.Equal(first, line) {
			return nil, policyMismatch()
		}
	}
	return first, nil
}

func policyMismatch() error {
	return fmt.Errorf("passphrases do not match")
}

// pinentryPassphrase does not talk to pinentry: it implements no part of
// the Assuan protocol and always returns an error naming cmd.
func pinentryPassphrase(cmd string, repeat int) ([]byte, error) {
	// A full Assuan client is out of scope here; callers needing
	// pinentry integration should prefer --input on automation paths.
	return nil, fmt.Errorf("pinentry support requires an interactive Assuan session (%s)", cmd)
}

func loadPassphraseSeed(conf *config) []byte {
	var passphrase []byte
	var err error
	if conf.input != "" {
		passphrase, err = firstLine(conf.input)
	} else {
		passphrase, err = readPassphrase(conf)
	}
	if err != nil {
		fatal("%s", err)
	}
	return kdf(passphrase, []byte(conf.uid), 1)
}

func loadOrGenerateKey(conf *config, km *openpgp.KeyManager) *openpgp.Key {
	if conf.load != "" {
		data, err := ioutil.ReadFile(conf.load)
		if err != nil {
			fatal("%s", err)
		}
		pkts, err := openpgp.ParseAll(data)
		if err != nil {
			fatal("parse %s: %s", conf.load, err)
		}
		key, err := parseTransferableKey(pkts)
		if err != nil {
			fatal("%s: %s", conf.load, err)
		}
		return key
	}

	seed := loadPassphraseSeed(conf)
	params := openpgp.KeyParams{Created: conf.created}
	switch conf.algorithm {
	case "ed25519":
		params.Algorithm = openpgp.PubKeyEdDSA
		params.Seed = seed[:32]
	case "rsa":
		params.Algorithm = openpgp.PubKeyRSA
		params.Bits = conf.bits
	case "nistp256":
		params.Algorithm = openpgp.PubKeyECDSA
		params.Curve = "NIST P-256"
	default:
		fatal("unknown --algorithm: %s", conf.algorithm)
	}
	key, err := km.NewKey(params)
	if err != nil {
		fatal("key generation: %s", err)
	}
	if len(conf.check) > 0 {
		id := fmt.Sprintf("%016X", key.Primary.KeyID())
		if !bytes.HasSuffix([]byte(id), []byte(fmt.Sprintf("%X", conf.check))) {
			fatal("Key ID does not match --check (-c): %s", id)
		}
	}
	if _, err := km.AddUID(key, conf.uid, openpgp.SignOpts{}); err != nil {
		fatal("%s", err)
	}
	if conf.subkey {
		subParams := params
		subParams.Algorithm = openpgp.PubKeyECDH
		subParams.Curve = "Curve25519"
		subParams.Seed = nil
		if conf.algorithm == "rsa" {
			subParams.Algorithm = openpgp.PubKeyRSA
		}
		subKey, err := km.NewKey(subParams)
		if err != nil {
			fatal("subkey generation: %s", err)
		}
		if _, err := km.AddSubkey(key, subKey.Primary, openpgp.KeyFlagEncryptComm|openpgp.KeyFlagEncryptStorage); err != nil {
			fatal("%s", err)
		}
	}
	return key
}

// parseTransferableKey reassembles a Key from a packet sequence loaded
// from disk.
func parseTransferableKey(pkts []openpgp.Packet) (*openpgp.Key, error) {
	if len(pkts) == 0 {
		return nil, fmt.Errorf("empty key file")
	}
	km, err := openpgp.ParseKeyMaterial(pkts[0])
	if err != nil {
		return nil, err
	}
	key := &openpgp.Key{Primary: km}
	var cur *openpgp.Identity
	for _, p := range pkts[1:] {
		switch p.Tag {
		case openpgp.TagUserID:
			id := &openpgp.Identity{UID: &openpgp.UserID{Value: string(p.Body)}}
			key.Identities = append(key.Identities, id)
			cur = id
		case openpgp.TagSignature:
			sig, err := openpgp.ParseSignaturePacket(p.Body)
			if err != nil {
				return nil, err
			}
			if cur != nil {
				cur.SelfCerts = append(cur.SelfCerts, sig)
			} else {
				key.DirectSigs = append(key.DirectSigs, sig)
			}
		case openpgp.TagPublicKey, openpgp.TagSecretKey, openpgp.TagPublicSubkey, openpgp.TagSecretSubkey:
			sk, err := openpgp.ParseKeyMaterial(p)
			if err != nil {
				return nil, err
			}
			key.Subkeys = append(key.Subkeys, &openpgp.Subkey{Key: sk})
			cur = nil
		}
	}
	return key, nil
}

func main() {
	logrus.SetOutput(os.Stderr)
	conf := parse()
	km := openpgp.NewKeyManager()

	switch conf.cmd {
	case cmdKey:
		key := loadOrGenerateKey(conf, km)
		var buf bytes.Buffer
		writeKeyMaterial := func(k *openpgp.KeyMaterial, subkey bool) {
			if conf.public {
				buf.Write(k.SerializePublicKeyPacket(subkey))
				return
			}
			pkt, err := k.SerializeSecretKeyPacket(openpgp.DefaultCryptoProvider{}, subkey)
			if err != nil {
				fatal("%s", err)
			}
			buf.Write(pkt)
		}
		writeKeyMaterial(key.Primary, false)
		for _, id := range key.Identities {
			buf.Write(id.UID.Serialize())
			for _, sig := range id.SelfCerts {
				buf.Write(sig.Serialize())
			}
		}
		for _, sub := range key.Subkeys {
			writeKeyMaterial(sub.Key, true)
			buf.Write(sub.Binding.Serialize())
		}
		output := buf.Bytes()
		if conf.armor {
			kind := openpgp.ArmorPublicKeyBlock
			if !conf.public {
				kind = openpgp.ArmorPrivateKeyBlock
			}
			output = openpgp.ArmorEncode(kind, output, nil)
		}
		os.Stdout.Write(output)

	case cmdSign:
		key := loadOrGenerateKey(conf, km)
		engine := openpgp.NewSignatureEngine()
		data, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fatal("%s", err)
		}
		sig, err := engine.Sign(openpgp.BinaryDocument{Data: data}, key.Primary, openpgp.SigBinaryDocument, openpgp.SignOpts{})
		if err != nil {
			fatal("%s", err)
		}
		output := sig.Serialize()
		if conf.armor {
			output = openpgp.ArmorEncode(openpgp.ArmorSignature, output, nil)
		}
		os.Stdout.Write(output)

	case cmdClearsign:
		key := loadOrGenerateKey(conf, km)
		var data []byte
		var err error
		if len(conf.args) == 1 {
			data, err = ioutil.ReadFile(conf.args[0])
		} else {
			data, err = ioutil.ReadAll(os.Stdin)
		}
		if err != nil {
			fatal("%s", err)
		}
		pipeline := openpgp.NewMessagePipeline()
		msg := pipeline.NewCleartext(data)
		signed, err := pipeline.SignCleartext(msg, key.Primary, openpgp.SignOpts{})
		if err != nil {
			fatal("%s", err)
		}
		out, err := pipeline.Serialize(signed, false)
		if err != nil {
			fatal("%s", err)
		}
		os.Stdout.Write(out)

	case cmdCertify:
		if conf.uid == "" {
			fatal("--certify requires --uid")
		}
		key := loadOrGenerateKey(conf, km)
		sig, err := km.AddUID(key, conf.uid, openpgp.SignOpts{})
		if err != nil {
			fatal("%s", err)
		}
		os.Stdout.Write(sig.Serialize())

	case cmdRevoke:
		key := loadOrGenerateKey(conf, km)
		sig, err := km.Revoke(key, openpgp.RevokeTarget{}, conf.revokeWhy, "")
		if err != nil {
			fatal("%s", err)
		}
		output := sig.Serialize()
		if conf.armor {
			output = openpgp.ArmorEncode(openpgp.ArmorSignature, output, nil)
		}
		os.Stdout.Write(output)

	case cmdEncrypt:
		key := loadOrGenerateKey(conf, km)
		pipeline := openpgp.NewMessagePipeline()
		data, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fatal("%s", err)
		}
		lit, err := pipeline.NewLiteral(data, "", false, 'b', openpgp.CompressionZIP)
		if err != nil {
			fatal("%s", err)
		}
		opts := openpgp.EncryptOpts{Cipher: openpgp.CipherAES256, ThrowKeyID: conf.throwKeyID}
		if conf.passphraseEnc {
			pass := loadPassphraseSeed(conf)
			opts.Passphrases = [][]byte{pass}
		} else {
			opts.Recipients = append(opts.Recipients, key.Primary)
			for _, path := range conf.recipients {
				rdata, err := ioutil.ReadFile(path)
				if err != nil {
					fatal("%s", err)
				}
				pkts, err := openpgp.ParseAll(rdata)
				if err != nil {
					fatal("%s", err)
				}
				rk, err := openpgp.ParseKeyMaterial(pkts[0])
				if err != nil {
					fatal("%s", err)
				}
				opts.Recipients = append(opts.Recipients, rk)
			}
		}
		out, err := pipeline.Encrypt(lit, opts)
		if err != nil {
			fatal("%s", err)
		}
		output, err := pipeline.Serialize(out, conf.armor)
		if err != nil {
			fatal("%s", err)
		}
		os.Stdout.Write(output)

	case cmdDecrypt:
		key := loadOrGenerateKey(conf, km)
		pipeline := openpgp.NewMessagePipeline()
		data, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fatal("%s", err)
		}
		pkts, err := openpgp.ParseAll(data)
		if err != nil {
			fatal("%s", err)
		}
		msg, err := openpgp.ParseEncryptedMessage(pkts)
		if err != nil {
			fatal("%s", err)
		}
		var pass []byte
		if conf.passphraseEnc {
			pass = loadPassphraseSeed(conf)
		}
		out, err := pipeline.Decrypt(msg, pass, key.Primary)
		if err != nil {
			fatal("%s", err)
		}
		os.Stdout.Write(out.Ciphertext)
	}
}
