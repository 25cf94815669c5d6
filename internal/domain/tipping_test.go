package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTreePost(t *testing.T) (*Post, *Comment, *Reply) {
	t.Helper()
	post := newTestPost()
	top, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Parent", "", now, window)
	require.NoError(t, err)
	reply, err := PlaceComment(post, Author{ID: "bob", Name: "bob"}, "Reply", top.Comment.ID, now, window)
	require.NoError(t, err)
	return post, top.Comment, reply.Reply
}

func TestLocate(t *testing.T) {
	post, comment, reply := newTreePost(t)

	target, err := post.Locate("")
	require.NoError(t, err)
	assert.Equal(t, KindPost, target.Kind)
	assert.Equal(t, "owner", target.OwnerID)

	target, err = post.Locate(post.ID)
	require.NoError(t, err)
	assert.Equal(t, KindPost, target.Kind)

	target, err = post.Locate(comment.ID)
	require.NoError(t, err)
	assert.Equal(t, KindComment, target.Kind)
	assert.Same(t, &comment.Escrow, target.Escrow)

	target, err = post.Locate(reply.ID)
	require.NoError(t, err)
	assert.Equal(t, KindReply, target.Kind)
	assert.Same(t, comment, target.Comment)
	assert.Same(t, &reply.Escrow, target.Escrow)

	_, err = post.Locate("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyTip_UpdatesTotals(t *testing.T) {
	post, comment, _ := newTreePost(t)
	sender := &User{ID: "carol", Username: "carol", Balance: decimal.NewFromInt(100)}

	target, err := post.Locate(comment.ID)
	require.NoError(t, err)

	tip, err := ApplyTip(target, post.ID, sender, decimal.NewFromInt(30), CurrencyNGN, now)
	require.NoError(t, err)

	assert.Equal(t, TipPending, tip.Status)
	assert.Equal(t, "alice", tip.ToUserID)
	assert.Equal(t, KindComment, tip.TargetKind)
	assert.True(t, comment.TotalTips.Equal(decimal.NewFromInt(30)))
	assert.True(t, comment.TotalTips.Equal(comment.Sum()))
	// Сумма поста не зависит от чаевых потомков.
	assert.True(t, post.TotalTips.IsZero())
	// Баланс списывает хранилище, а не ApplyTip.
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(100)))
}

func TestApplyTip_Duplicate(t *testing.T) {
	post, _, reply := newTreePost(t)
	sender := &User{ID: "carol", Balance: decimal.NewFromInt(100)}
	target, err := post.Locate(reply.ID)
	require.NoError(t, err)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(10), CurrencyHIVE, now)
	require.NoError(t, err)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(5), CurrencyHIVE, now)
	require.ErrorIs(t, err, ErrAlreadyTipped)
	require.ErrorIs(t, err, ErrConflict)
	assert.Len(t, reply.Tips, 1)
	assert.True(t, reply.TotalTips.Equal(decimal.NewFromInt(10)))
}

func TestApplyTip_InsufficientBalance(t *testing.T) {
	post := newTestPost()
	sender := &User{ID: "a", Balance: decimal.NewFromInt(50)}
	target, err := post.Locate("")
	require.NoError(t, err)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(60), CurrencyNGN, now)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, post.Tips)
	assert.True(t, post.TotalTips.IsZero())
}

func TestApplyTip_SelfTipPolicy(t *testing.T) {
	post, comment, _ := newTreePost(t)

	// Автор поста может отправить чаевые на свой пост.
	owner := &User{ID: "owner", Balance: decimal.NewFromInt(10)}
	target, err := post.Locate("")
	require.NoError(t, err)
	_, err = ApplyTip(target, post.ID, owner, decimal.NewFromInt(1), CurrencyNGN, now)
	require.NoError(t, err)

	// А на свой комментарий - нет.
	alice := &User{ID: "alice", Balance: decimal.NewFromInt(10)}
	target, err = post.Locate(comment.ID)
	require.NoError(t, err)
	_, err = ApplyTip(target, post.ID, alice, decimal.NewFromInt(1), CurrencyNGN, now)
	require.ErrorIs(t, err, ErrSelfTip)
	assert.Empty(t, comment.Tips)
}

func TestApplyTip_Validation(t *testing.T) {
	post := newTestPost()
	sender := &User{ID: "a", Balance: decimal.NewFromInt(50)}
	target, err := post.Locate("")
	require.NoError(t, err)

	_, err = ApplyTip(target, post.ID, sender, decimal.Zero, CurrencyNGN, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(-5), CurrencyNGN, now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(5), Currency("USD"), now)
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	assert.Empty(t, post.Tips)
}

func TestValidateTip_StorableAmounts(t *testing.T) {
	cases := []struct {
		amount string
		valid  bool
	}{
		{"0.00000001", true},
		{"1.50000000000", true},
		{"999999999999.99999999", true},
		{"0.000000001", false},
		{"1.123456789", false},
		{"1000000000000", false},
		{"1e15", false},
	}
	for _, tc := range cases {
		err := ValidateTip(decimal.RequireFromString(tc.amount), CurrencyNGN)
		if tc.valid {
			assert.NoError(t, err, tc.amount)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.amount)
		}
	}
}

func TestValidateBalance(t *testing.T) {
	assert.NoError(t, ValidateBalance(decimal.Zero))
	assert.NoError(t, ValidateBalance(decimal.RequireFromString("50.12345678")))
	assert.ErrorIs(t, ValidateBalance(decimal.NewFromInt(-1)), ErrInvalidBalance)
	assert.ErrorIs(t, ValidateBalance(decimal.RequireFromString("0.000000001")), ErrInvalidBalance)
	assert.ErrorIs(t, ValidateBalance(decimal.New(1, 12)), ErrInvalidBalance)
}

func TestApplyTip_SettledTarget(t *testing.T) {
	post := newTestPost()
	post.MarkPaidOut()
	sender := &User{ID: "a", Balance: decimal.NewFromInt(50)}
	target, err := post.Locate("")
	require.NoError(t, err)

	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(5), CurrencyNGN, now)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestEscrow_SettlementTransitions(t *testing.T) {
	post, comment, reply := newTreePost(t)
	sender := &User{ID: "carol", Balance: decimal.NewFromInt(100)}
	target, err := post.Locate("")
	require.NoError(t, err)
	_, err = ApplyTip(target, post.ID, sender, decimal.NewFromInt(10), CurrencyNGN, now)
	require.NoError(t, err)

	assert.False(t, post.Due(now))
	assert.Empty(t, post.DueTargets(now))

	later := now.Add(window)
	assert.True(t, post.Due(later))
	assert.Len(t, post.DueTargets(later), 3)

	require.NotNil(t, post.NextPayoutAt())
	assert.Equal(t, now.Add(window), *post.NextPayoutAt())

	assert.True(t, post.MarkPaidOut())
	assert.False(t, post.MarkPaidOut())
	assert.Equal(t, TipReleased, post.Tips[0].Status)
	assert.False(t, post.Due(later))

	comment.MarkPaidOut()
	reply.MarkPaidOut()
	assert.Nil(t, post.NextPayoutAt())
}

func TestPost_CloneIsDeep(t *testing.T) {
	post, comment, _ := newTreePost(t)

	clone := post.Clone()
	clone.Comments[0].Children[0].Content = "changed"
	clone.Comments[0].IsPaidOut = true
	clone.Tips = append(clone.Tips, Tip{ID: "x"})

	assert.Equal(t, "Reply", comment.Children[0].Content)
	assert.False(t, comment.IsPaidOut)
	assert.Empty(t, post.Tips)
}

func TestInternal(t *testing.T) {
	assert.Nil(t, Internal(nil))
	assert.Same(t, ErrUserNotFound, Internal(ErrUserNotFound))

	err := Internal(assert.AnError)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, assert.AnError)
}
