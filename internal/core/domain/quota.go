package domain

// Tier is the caller's entitlement class.
type Tier string

const (
	TierGuest Tier = "guest"
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
)

// Unlimited is reported as max/remaining for tiers without a cap.
const Unlimited = -1

const (
	DefaultGuestMaxAnalyses = 5
	DefaultFreeMaxAnalyses  = 10
)

// GuestClaim is the client-held guest counter. It is advisory only.
type GuestClaim struct {
	Session string
	Used    int
}

// Caller is the identity resolved for one request. Exactly one of Subject
// or Guest is set for authorized callers; neither is set for anonymous ones.
type Caller struct {
	Subject string
	Email   string
	Guest   *GuestClaim
}

func (c Caller) IsAccount() bool {
	return c.Subject != ""
}

func (c Caller) IsGuest() bool {
	return c.Subject == "" && c.Guest != nil
}

func (c Caller) IsAnonymous() bool {
	return !c.IsAccount() && !c.IsGuest()
}

// QuotaPolicy maps tiers to their analysis caps.
type QuotaPolicy struct {
	GuestMax int `yaml:"guest_max"`
	FreeMax  int `yaml:"free_max"`
}

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		GuestMax: DefaultGuestMaxAnalyses,
		FreeMax:  DefaultFreeMaxAnalyses,
	}
}

// Normalize replaces non-positive caps with the defaults.
func (p QuotaPolicy) Normalize() QuotaPolicy {
	out := p
	def := DefaultQuotaPolicy()
	if out.GuestMax <= 0 {
		out.GuestMax = def.GuestMax
	}
	if out.FreeMax <= 0 {
		out.FreeMax = def.FreeMax
	}
	return out
}

// QuotaStatus is the evaluated allowance for one caller.
type QuotaStatus struct {
	Role      Tier `json:"role"`
	Used      int  `json:"used"`
	Max       int  `json:"max"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// Allowed reports whether one more analysis may be consumed.
func (s QuotaStatus) Allowed() bool {
	return s.Unlimited || s.Remaining > 0
}

// Evaluate computes the allowance for a tier at the given usage. Usage is
// clamped at zero and remaining never goes negative.
func (p QuotaPolicy) Evaluate(tier Tier, used int) QuotaStatus {
	if used < 0 {
		used = 0
	}
	switch tier {
	case TierPro:
		return QuotaStatus{
			Role:      TierPro,
			Used:      used,
			Max:       Unlimited,
			Remaining: Unlimited,
			Unlimited: true,
		}
	case TierGuest:
		return capped(TierGuest, used, p.GuestMax)
	default:
		return capped(TierFree, used, p.FreeMax)
	}
}

// DenialKind returns the sentinel describing why a tier at this status is
// denied, or nil when it is allowed.
func (s QuotaStatus) DenialKind() error {
	if s.Allowed() {
		return nil
	}
	if s.Role == TierGuest {
		return ErrGuestLimitReached
	}
	return ErrFreeLimitReached
}

func capped(tier Tier, used, max int) QuotaStatus {
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		Role:      tier,
		Used:      used,
		Max:       max,
		Remaining: remaining,
	}
}

// ParseTier maps stored tier values, treating anything unknown as free.
func ParseTier(raw string) Tier {
	switch Tier(raw) {
	case TierPro:
		return TierPro
	default:
		return TierFree
	}
}
