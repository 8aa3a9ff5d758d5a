package chaina

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// ErrMarketExists indica que já existe uma conta no endereço derivado do market id.
// O programa on-chain rejeita a criação quando o PDA já foi alocado; é o guard
// de duplicidade do lado do ledger.
var ErrMarketExists = errors.New("market account already exists")

// seed fixa do PDA, concatenada com o market id (mesmo esquema do programa)
const pdaSeed = "bid"

// Client encapsula a criação de mercados no programa Solana.
// Não faz retry: reprocessamento é responsabilidade do reconciler no próximo tick.
type Client struct {
	Log       *zap.Logger
	RPC       *rpc.Client
	ProgramID solana.PublicKey
	Admin     solana.PrivateKey
}

// New monta o cliente a partir da URL do RPC, do program id em base58 e da
// chave do admin (base58 ou array JSON de bytes, formato do keypair exportado).
func New(log *zap.Logger, rpcURL, programID, adminKey string) (*Client, error) {
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("parse program id: %w", err)
	}
	admin, err := parsePrivateKey(adminKey)
	if err != nil {
		return nil, fmt.Errorf("parse admin key: %w", err)
	}
	return &Client{
		Log:       log,
		RPC:       rpc.New(rpcURL),
		ProgramID: pid,
		Admin:     admin,
	}, nil
}

// CreateMarket cria o mercado sob o PDA derivado de ["bid", marketID].
// Retorna a assinatura da transação; ErrMarketExists quando o endereço já está em uso.
func (c *Client) CreateMarket(ctx context.Context, marketID, question string) (string, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(pdaSeed), []byte(marketID)},
		c.ProgramID,
	)
	if err != nil {
		return "", fmt.Errorf("derive market pda: %w", err)
	}

	recent, err := c.RPC.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	ix := solana.NewInstruction(
		c.ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(pda, true, false),
			solana.NewAccountMeta(c.Admin.PublicKey(), true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		createBidData(marketID, question),
	)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.Admin.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.Admin.PublicKey()) {
			return &c.Admin
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		if isAlreadyInUse(err) {
			return "", fmt.Errorf("market %s at %s: %w", marketID, pda, ErrMarketExists)
		}
		return "", fmt.Errorf("send create_bid tx: %w", err)
	}

	c.Log.Debug("create_bid sent",
		zap.String("market_id", marketID),
		zap.String("pda", pda.String()),
		zap.String("signature", sig.String()),
	)
	return sig.String(), nil
}

// createBidData monta o payload anchor da instrução create_bid:
// discriminator global de 8 bytes + os dois argumentos string em borsh.
func createBidData(marketID, question string) []byte {
	disc := sha256.Sum256([]byte("global:create_bid"))
	data := make([]byte, 0, 8+4+len(marketID)+4+len(question))
	data = append(data, disc[:8]...)
	data = appendBorshString(data, marketID)
	data = appendBorshString(data, question)
	return data
}

// appendBorshString codifica uma string borsh: u32 little-endian + bytes
func appendBorshString(dst []byte, s string) []byte {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
	dst = append(dst, l[:]...)
	return append(dst, s...)
}

// parsePrivateKey aceita base58 ou o array JSON de bytes do solana-keygen
func parsePrivateKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var nums []int
		if err := json.Unmarshal([]byte(raw), &nums); err != nil {
			return nil, fmt.Errorf("decode json keypair: %w", err)
		}
		key := make([]byte, len(nums))
		for i, n := range nums {
			key[i] = byte(n)
		}
		return solana.PrivateKey(key), nil
	}
	return solana.PrivateKeyFromBase58(raw)
}

// isAlreadyInUse detecta a falha de alocação do runtime quando a conta do PDA
// já existe ("Allocate: account ... already in use")
func isAlreadyInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already in use")
}
