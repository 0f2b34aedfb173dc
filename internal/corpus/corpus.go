// Package corpus reads documents from pasted text and uploaded files. Every non-empty
// trimmed line is one document.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned for input that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("input is not valid UTF-8")

// maxLine bounds a single document.
const maxLine = 1 << 20

// ReadLines returns the trimmed, non-empty lines of r in order.
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var docs []string
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: line %d", ErrInvalidEncoding, line)
		}
		// a leading byte order mark is not part of the text
		if line == 1 {
			raw = trimBOM(raw)
		}
		if s := strings.TrimSpace(string(raw)); s != "" {
			docs = append(docs, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return docs, nil
}

// FromText splits pasted text into documents.
func FromText(text string) ([]string, error) {
	return ReadLines(strings.NewReader(text))
}

// ReadFiles concatenates the documents of every file, in argument order.
func ReadFiles(paths ...string) ([]string, error) {
	var docs []string
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		lines, err := ReadLines(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		docs = append(docs, lines...)
	}
	return docs, nil
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

// Sample returns the built-in demo corpus: eight short Chinese documents spanning machine
// learning, consumer technology, finance and sports.
func Sample() []string {
	return []string{
		"深度学习是机器学习的一个重要分支，它在图像识别领域取得了巨大成功。",
		"自然语言处理关注计算机如何理解和生成人类语言，应用广泛。",
		"机器学习算法，如支持向量机和决策树，常用于数据挖掘任务。",
		"苹果公司最近发布了新款iPhone，配备了更强大的A系列仿生芯片。",
		"特斯拉是全球领先的电动汽车制造商，其自动驾驶技术备受关注。",
		"最近的金融市场波动较大，投资者在进行股票交易时应保持谨慎。",
		"中国国家足球队正在积极备战即将到来的亚洲杯预选赛。",
		"NBA篮球联赛常规赛激战正酣，各支球队为季后赛名额展开激烈争夺。",
	}
}
