package conf

import (
	"os"
	"strings"

	"github.com/spirit-labs/blockjoin/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DefaultJoinType         = JoinTypeInnerName
	DefaultCounterBatchSize = 1000
)

const (
	JoinTypeInnerName      = "INNER"
	JoinTypeLeftOuterName  = "LEFT OUTER"
	JoinTypeRightOuterName = "RIGHT OUTER"
)

type JoinType int

const (
	JoinTypeInner JoinType = iota
	JoinTypeLeftOuter
	JoinTypeRightOuter
)

func (j JoinType) String() string {
	switch j {
	case JoinTypeInner:
		return JoinTypeInnerName
	case JoinTypeLeftOuter:
		return JoinTypeLeftOuterName
	case JoinTypeRightOuter:
		return JoinTypeRightOuterName
	default:
		panic("unknown join type")
	}
}

// ParseJoinType parses a join type tag. Matching ignores case and runs of whitespace, so "left  outer" is LEFT OUTER.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case JoinTypeInnerName:
		return JoinTypeInner, nil
	case JoinTypeLeftOuterName:
		return JoinTypeLeftOuter, nil
	case JoinTypeRightOuterName:
		return JoinTypeRightOuter, nil
	default:
		return 0, errors.NewInvalidConfigurationErrorf("joinType must be one of %s, %s, %s but was '%s'",
			JoinTypeInnerName, JoinTypeLeftOuterName, JoinTypeRightOuterName, s)
	}
}

// JoinConfig configures a hash join between two named blocks. Keys are given either once, in JoinKeys, when both
// sides use the same column names, or per side in LeftJoinKeys and RightJoinKeys.
type JoinConfig struct {
	Input            []string `json:"input"`
	LeftBlock        string   `json:"leftBlock"`
	JoinKeys         []string `json:"joinKeys"`
	LeftJoinKeys     []string `json:"leftJoinKeys"`
	RightJoinKeys    []string `json:"rightJoinKeys"`
	JoinType         string   `json:"joinType"`
	CounterBatchSize int      `json:"counterBatchSize"`
	ReuseOutputRow   bool     `json:"reuseOutputRow"`
}

// ParseJoinConfig decodes a JSON or JSON5 document, applies defaults and validates the result.
func ParseJoinConfig(data []byte) (*JoinConfig, error) {
	cfg := &JoinConfig{}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewInvalidConfigurationErrorf("cannot parse join config: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadJoinConfigFile(path string) (*JoinConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseJoinConfig(data)
}

// ApplyDefaults also rewrites leftBlock to the spelling used in input, since block names match ignoring case.
func (c *JoinConfig) ApplyDefaults() {
	if c.LeftBlock == "" && len(c.Input) > 0 {
		c.LeftBlock = c.Input[0]
	}
	for _, name := range c.Input {
		if strings.EqualFold(name, c.LeftBlock) {
			c.LeftBlock = name
			break
		}
	}
	if c.JoinType == "" {
		c.JoinType = DefaultJoinType
	}
	if c.CounterBatchSize == 0 {
		c.CounterBatchSize = DefaultCounterBatchSize
	}
}

func (c *JoinConfig) Validate() error {
	if len(c.Input) != 2 {
		return errors.NewInvalidConfigurationErrorf("input must name exactly two blocks but names %d", len(c.Input))
	}
	if c.Input[0] == "" || c.Input[1] == "" {
		return errors.NewInvalidConfigurationError("input block names must not be empty")
	}
	if strings.EqualFold(c.Input[0], c.Input[1]) {
		return errors.NewInvalidConfigurationError("input block names must be distinct")
	}
	if !strings.EqualFold(c.LeftBlock, c.Input[0]) && !strings.EqualFold(c.LeftBlock, c.Input[1]) {
		return errors.NewInvalidConfigurationErrorf("leftBlock '%s' is not one of the input blocks", c.LeftBlock)
	}
	if len(c.JoinKeys) > 0 && (len(c.LeftJoinKeys) > 0 || len(c.RightJoinKeys) > 0) {
		return errors.NewInvalidConfigurationError("joinKeys cannot be combined with leftJoinKeys or rightJoinKeys")
	}
	leftKeys, rightKeys := c.LeftKeys(), c.RightKeys()
	if len(leftKeys) == 0 || len(rightKeys) == 0 {
		return errors.NewInvalidConfigurationError("joinKeys, or both leftJoinKeys and rightJoinKeys, must be specified")
	}
	if len(leftKeys) != len(rightKeys) {
		return errors.NewInvalidConfigurationErrorf(
			"leftJoinKeys and rightJoinKeys must have the same number of columns but have %d and %d",
			len(leftKeys), len(rightKeys))
	}
	if _, err := ParseJoinType(c.JoinType); err != nil {
		return err
	}
	if c.CounterBatchSize < 1 {
		return errors.NewInvalidConfigurationError("counterBatchSize must be > 0")
	}
	return nil
}

// RightBlock returns the input which is not the left block.
func (c *JoinConfig) RightBlock() string {
	if strings.EqualFold(c.Input[0], c.LeftBlock) {
		return c.Input[1]
	}
	return c.Input[0]
}

func (c *JoinConfig) LeftKeys() []string {
	if len(c.JoinKeys) > 0 {
		return c.JoinKeys
	}
	return c.LeftJoinKeys
}

func (c *JoinConfig) RightKeys() []string {
	if len(c.JoinKeys) > 0 {
		return c.JoinKeys
	}
	return c.RightJoinKeys
}

// Type returns the parsed join type. It must only be called on a validated config.
func (c *JoinConfig) Type() JoinType {
	jt, err := ParseJoinType(c.JoinType)
	if err != nil {
		panic(err)
	}
	return jt
}
