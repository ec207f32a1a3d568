package services

import (
	"reflect"
	"testing"
)

func TestRank(t *testing.T) {
	svc := NewKeywordService()

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "brackets and price",
			in:   "【新品】ロッドリール 3点セット 1,500円",
			want: []string{"ロッドリール", "3点セット"},
		},
		{
			name: "noise phrases removed",
			in:   "ジャンク ソニー ウォークマン ランクB 送料無料",
			want: []string{"ウォークマン", "ソニー"},
		},
		{
			name: "top three longest",
			in:   "パナソニック ビデオカメラ HC-V360MS バッテリー 充電器 ケース",
			want: []string{"HC-V360MS", "パナソニック", "ビデオカメラ"},
		},
		{
			name: "stable order on equal length",
			in:   "ああ いい うう",
			want: []string{"ああ", "いい", "うう"},
		},
		{
			name: "single rune tokens dropped",
			in:   "A ミニカー B",
			want: []string{"ミニカー"},
		},
		{
			name: "nothing usable",
			in:   "中古 新品 500円 2,000円",
			want: nil,
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Rank(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Rank(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
