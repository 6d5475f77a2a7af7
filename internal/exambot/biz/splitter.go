package biz

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/kart-io/exambot/internal/exambot/store"
)

const (
	defaultSection  = "Introduction"
	minChunkLength  = 20
	maxSectionRunes = 250
)

// Tokenizer 统计文本的 token 数。
type Tokenizer interface {
	Count(text string) int
}

// WordTokenizer 以空白分隔的单词数近似 token 数。
type WordTokenizer struct{}

// Count 返回单词数。
func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

var (
	defaultTokenizer     Tokenizer
	defaultTokenizerOnce sync.Once
)

// DefaultTokenizer 返回 cl100k_base 编码的 tokenizer。
// 编码文件加载失败（例如离线环境）时退化为 WordTokenizer。
func DefaultTokenizer() Tokenizer {
	defaultTokenizerOnce.Do(func() {
		// BPE 词表随二进制打包，不在运行时下载
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Warnw("tiktoken encoding unavailable, counting words instead", "error", err.Error())
			defaultTokenizer = WordTokenizer{}
			return
		}
		defaultTokenizer = &tiktokenTokenizer{enc: enc}
	})
	return defaultTokenizer
}

// SentenceSplitter 按句子边界切分文本，每块不超过 chunkSize 个 token，
// 相邻块之间最多重叠 chunkOverlap 个 token 的完整句子。
type SentenceSplitter struct {
	chunkSize    int
	chunkOverlap int
	tokenizer    Tokenizer
}

// NewSentenceSplitter 创建切分器。tokenizer 为空时使用 DefaultTokenizer。
func NewSentenceSplitter(chunkSize, chunkOverlap int, tokenizer Tokenizer) *SentenceSplitter {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	if tokenizer == nil {
		tokenizer = DefaultTokenizer()
	}
	return &SentenceSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		tokenizer:    tokenizer,
	}
}

var headerRegex = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(\S.*)$`)

// SplitDocument 将文档切分为文档块。Markdown 标题决定后续块的 Section。
func (s *SentenceSplitter) SplitDocument(doc *Document) []*store.Chunk {
	sections := headerRegex.Split(doc.Text, -1)
	headers := headerRegex.FindAllStringSubmatch(doc.Text, -1)

	var chunks []*store.Chunk
	currentSection := defaultSection
	for idx, section := range sections {
		if idx > 0 && idx-1 < len(headers) {
			currentSection = strings.TrimSpace(headers[idx-1][2])
		}
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		for _, text := range s.SplitText(section) {
			if utf8.RuneCountInString(strings.TrimSpace(text)) < minChunkLength {
				continue
			}
			chunks = append(chunks, &store.Chunk{
				ID:           hashString(doc.ID + ":" + strconv.Itoa(len(chunks))),
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				Section:      truncateRunes(currentSection, maxSectionRunes),
				Content:      text,
			})
		}
	}
	return chunks
}

type unit struct {
	text   string
	tokens int
}

// SplitText 将文本切分为若干块。
func (s *SentenceSplitter) SplitText(text string) []string {
	var (
		chunks    []string
		cur       []unit
		curTokens int
	)
	for _, u := range s.splitUnits(text) {
		if len(cur) > 0 && curTokens+u.tokens > s.chunkSize {
			chunks = append(chunks, joinUnits(cur))
			cur, curTokens = s.overlapTail(cur)
			if curTokens+u.tokens > s.chunkSize {
				cur, curTokens = nil, 0
			}
		}
		cur = append(cur, u)
		curTokens += u.tokens
	}
	if len(cur) > 0 {
		chunks = append(chunks, joinUnits(cur))
	}
	return chunks
}

// overlapTail 取上一块末尾 token 总数不超过 chunkOverlap 的完整句子。
func (s *SentenceSplitter) overlapTail(units []unit) ([]unit, int) {
	total := 0
	start := len(units)
	for i := len(units) - 1; i >= 0; i-- {
		if total+units[i].tokens > s.chunkOverlap {
			break
		}
		total += units[i].tokens
		start = i
	}
	tail := make([]unit, len(units)-start)
	copy(tail, units[start:])
	return tail, total
}

// splitUnits 把文本拆成句子；超过 chunkSize 的句子再按单词拆分。
func (s *SentenceSplitter) splitUnits(text string) []unit {
	var units []unit
	for _, line := range strings.Split(text, "\n") {
		for _, sentence := range splitSentences(line) {
			n := s.tokenizer.Count(sentence)
			if n <= s.chunkSize {
				units = append(units, unit{text: sentence, tokens: n})
				continue
			}
			units = append(units, s.splitWords(sentence)...)
		}
	}
	return units
}

func (s *SentenceSplitter) splitWords(sentence string) []unit {
	var (
		units []unit
		cur   []string
	)
	for _, w := range strings.Fields(sentence) {
		candidate := strings.Join(append(cur, w), " ")
		if len(cur) > 0 && s.tokenizer.Count(candidate) > s.chunkSize {
			piece := strings.Join(cur, " ")
			units = append(units, unit{text: piece, tokens: s.tokenizer.Count(piece)})
			cur = cur[:0]
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		piece := strings.Join(cur, " ")
		units = append(units, unit{text: piece, tokens: s.tokenizer.Count(piece)})
	}
	return units
}

// splitSentences 在 . ! ? 及中文句末标点之后断句。
func splitSentences(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var out []string
	runes := []rune(line)
	start := 0
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}
		if r < utf8.RuneSelf && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func joinUnits(units []unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.text
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
