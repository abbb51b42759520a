package totpx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jjcims/jjcims/pkg/totpx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	t.Parallel()
	p := totpx.Provisioner{Issuer: "JJCIMS"}

	a, err := p.GenerateSecret()
	require.NoError(t, err)
	b, err := p.GenerateSecret()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, totpx.ValidSecret(a))
	// 160 bits -> 32 base32 characters, no padding.
	require.Len(t, a, 32)
}

func TestProvisioningURI(t *testing.T) {
	t.Parallel()
	p := totpx.Provisioner{Issuer: "JJCIMS"}

	uri := p.ProvisioningURI("JBSWY3DPEHPK3PXP", "admin1")
	require.True(t, strings.HasPrefix(uri, "otpauth://totp/JJCIMS:admin1?"))
	require.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	require.Contains(t, uri, "issuer=JJCIMS")
	require.Contains(t, uri, "algorithm=SHA1")
	require.Contains(t, uri, "digits=6")
	require.Contains(t, uri, "period=30")
}

func TestRenderQR(t *testing.T) {
	t.Parallel()
	p := totpx.Provisioner{Issuer: "JJCIMS"}

	payload, err := totpx.RenderQR(p.ProvisioningURI("JBSWY3DPEHPK3PXP", "admin1"), 200)
	require.NoError(t, err)
	require.Greater(t, len(payload), 8)
	// PNG signature.
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, payload[:4])
}

func TestRenderQRRejectsBadURI(t *testing.T) {
	t.Parallel()

	_, err := totpx.RenderQR("http://not-otpauth", 200)
	require.Error(t, err)
}

func TestVerifyWithinWindow(t *testing.T) {
	t.Parallel()
	p := totpx.Provisioner{Issuer: "JJCIMS"}

	secret, err := p.GenerateSecret()
	require.NoError(t, err)

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	code, err := totp.GenerateCode(secret, now)
	require.NoError(t, err)
	require.True(t, p.VerifyAt(secret, code, now))

	// One step of skew either side is accepted by default.
	require.True(t, p.VerifyAt(secret, code, now.Add(totpx.Period*time.Second)))
	require.True(t, p.VerifyAt(secret, code, now.Add(-totpx.Period*time.Second)))

	// Two steps away is outside the window.
	require.False(t, p.VerifyAt(secret, code, now.Add(3*totpx.Period*time.Second)))
}

func TestVerifyConfigurableSkew(t *testing.T) {
	t.Parallel()

	secret := "JBSWY3DPEHPK3PXP"
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	code, err := totp.GenerateCode(secret, now)
	require.NoError(t, err)

	zero := uint(0)
	strict := totpx.Provisioner{Issuer: "JJCIMS", SkewSteps: &zero}
	require.True(t, strict.VerifyAt(secret, code, now))
	require.False(t, strict.VerifyAt(secret, code, now.Add(totpx.Period*time.Second)))
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	t.Parallel()
	p := totpx.Provisioner{Issuer: "JJCIMS"}

	for _, code := range []string{"", "12345", "1234567", "12345a", "      "} {
		require.False(t, p.Verify("JBSWY3DPEHPK3PXP", code), "code %q", code)
	}
}

func TestValidSecret(t *testing.T) {
	t.Parallel()

	require.True(t, totpx.ValidSecret("JBSWY3DPEHPK3PXP"))
	require.True(t, totpx.ValidSecret("jbsw y3dp ehpk 3pxp"))
	require.False(t, totpx.ValidSecret(""))
	require.False(t, totpx.ValidSecret("not!base32"))
	require.False(t, totpx.ValidSecret("18901"))
}
